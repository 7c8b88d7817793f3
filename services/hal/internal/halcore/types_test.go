// services/hal/internal/halcore/types_test.go

package halcore

import "testing"

func TestPullString(t *testing.T) {
	if PullUp.String() != "up" ||
		PullDown.String() != "down" ||
		PullNone.String() != "none" {
		t.Fatal("Pull.String mapping incorrect")
	}
}
