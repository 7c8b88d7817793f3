package harness

import (
	"context"
	"strings"

	"plantcode-go/errcode"
	"plantcode-go/services/assistant"
	"plantcode-go/services/config"
)

func (s *Server) config(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usage("config", "missing action: config <show|get|set|save|reset>")
	}
	st := s.sys.Config
	switch args[0] {
	case "show":
		vals := make(map[string]string)
		for _, k := range config.Keys() {
			vals[k], _ = st.Lookup(k)
		}
		r := okReply("config_show")
		r["config"] = vals
		s.emit(r)
		return nil
	case "get":
		if len(args) != 2 {
			return usage("config", "usage: config get <key>")
		}
		v, ok := st.Lookup(args[1])
		if !ok {
			return &errcode.E{C: errcode.UnknownKey, Op: "config.get", Msg: args[1]}
		}
		r := okReply("config_get")
		r["key"], r["value"] = args[1], v
		s.emit(r)
		return nil
	case "set":
		if len(args) < 3 {
			return usage("config", "usage: config set <key> <value>")
		}
		// unquoted values with spaces arrive split
		val := strings.Join(args[2:], " ")
		if err := st.Set(args[1], val); err != nil {
			return err
		}
		v, _ := st.Lookup(args[1])
		r := okReply("config_set")
		r["key"], r["value"] = args[1], v
		r["message"] = "not persisted until config save"
		s.emit(r)
		return nil
	case "save":
		if err := st.Save(); err != nil {
			return err
		}
		s.emit(okReply("config_save"))
		return nil
	case "reset":
		if err := st.Reset(); err != nil {
			return err
		}
		s.emit(okReply("config_reset"))
		return nil
	}
	return usage("config", "unknown action %s", args[0])
}

func (s *Server) chat(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("chat", "missing action: chat <ask|history|clear>")
	}
	a := s.sys.Assistant
	switch args[0] {
	case "ask":
		if len(args) < 2 {
			return usage("chat", "usage: chat ask <message>")
		}
		msg := strings.Join(args[1:], " ")
		s.emit(Reply{"command": "chat_ask", "status": "pending", "message": msg})
		reply, opts, err := a.ChatWithOptions(ctx, msg)
		if err != nil {
			return err
		}
		r := okReply("chat_ask")
		r["reply"], r["options"] = reply, opts
		s.emit(r)
		return nil
	case "history":
		turns := a.History().Turns()
		if turns == nil {
			turns = []assistant.Turn{}
		}
		r := okReply("chat_history")
		r["turns"] = turns
		s.emit(r)
		return nil
	case "clear":
		a.History().Clear()
		s.emit(okReply("chat_clear"))
		return nil
	}
	return usage("chat", "unknown action %s", args[0])
}
