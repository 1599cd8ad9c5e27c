package protocol

import (
	"strconv"
	"strings"
	"time"
)

// Record is the single message shape exchanged on the wire. Data is a
// side channel carrying ;-joined lists whose layout depends on Kind.
type Record struct {
	Kind      string
	From      string
	To        string
	Content   string
	Data      string
	Timestamp int64 // unix milliseconds
}

// ServerName is the From value of every record the server originates.
const ServerName = "server"

// Request kinds (client -> server)
const (
	KindLogin        = "LOGIN"
	KindChat         = "CHAT"
	KindFriendList   = "FRIEND_LIST"
	KindFriendAdd    = "FRIEND_ADD"
	KindFriendRemark = "FRIEND_REMARK"
	KindFriendDel    = "FRIEND_DEL"
	KindStatusQuery  = "STATUS_QUERY"
	KindHisList      = "HIS_LIST"
	KindHisRead      = "HIS_READ"
	KindHisDel       = "HIS_DEL"
)

// Response and push kinds (server -> client)
const (
	KindLoginOK          = "LOGIN_OK"
	KindLoginFail        = "LOGIN_FAIL"
	KindKick             = "KICK"
	KindChatOfflineSaved = "CHAT_OFFLINE_SAVED"
	KindFriendListRes    = "FRIEND_LIST_RES"
	KindFriendOpOK       = "FRIEND_OP_OK"
	KindFriendOpFail     = "FRIEND_OP_FAIL"
	KindStatusRes        = "STATUS_RES"
	KindStatusPush       = "STATUS_PUSH"
	KindHisListRes       = "HIS_LIST_RES"
	KindHisReadRes       = "HIS_READ_RES"
	KindHisDelOK         = "HIS_DEL_OK"
	KindHisDelFail       = "HIS_DEL_FAIL"
	KindSysNotice        = "SYS_NOTICE"
)

// NoHistory is the HIS_READ_RES content for a pair without a transcript.
const NoHistory = "(no chat history yet)"

// ListSeparator joins the items carried in Record.Data.
const ListSeparator = ";"

// New builds a record stamped with the current time.
func New(kind, from, to, content string) Record {
	return Record{
		Kind:      kind,
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewList builds a server record whose Data carries items.
func NewList(kind, to string, items []string) Record {
	rec := New(kind, ServerName, to, "")
	rec.Data = strings.Join(items, ListSeparator)
	return rec
}

// SplitList is the inverse of NewList for a received Data field.
func SplitList(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(data, ListSeparator)
}

// Encode renders rec as one line (without the trailing newline):
// {"type":"...","from":"...","to":"...","content":"...","data":"...","timestamp":N}
func Encode(rec Record) string {
	var b strings.Builder
	b.WriteByte('{')
	writeString(&b, "type", rec.Kind)
	b.WriteByte(',')
	writeString(&b, "from", rec.From)
	b.WriteByte(',')
	writeString(&b, "to", rec.To)
	b.WriteByte(',')
	writeString(&b, "content", rec.Content)
	b.WriteByte(',')
	writeString(&b, "data", rec.Data)
	b.WriteString(`,"timestamp":`)
	b.WriteString(strconv.FormatInt(rec.Timestamp, 10))
	b.WriteByte('}')
	return b.String()
}

func writeString(b *strings.Builder, key, value string) {
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`":"`)
	b.WriteString(Escape(value))
	b.WriteByte('"')
}

// Decode parses one line produced by Encode. It never fails: unknown keys
// are skipped, missing ones stay zero, and a line that is not a flat object
// yields an empty Record.
func Decode(line string) Record {
	fields := parseFlat(line)

	rec := Record{
		Kind:    fields["type"],
		From:    fields["from"],
		To:      fields["to"],
		Content: fields["content"],
		Data:    fields["data"],
	}
	if ts, ok := fields["timestamp"]; ok {
		if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
			rec.Timestamp = n
		}
	}
	return rec
}

// parseFlat understands {"k":"v","k2":123} objects only. Values are split on
// commas outside quoted strings; quote state honours backslash escapes.
func parseFlat(line string) map[string]string {
	fields := make(map[string]string)

	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "{")
	line = strings.TrimSuffix(line, "}")

	for _, part := range splitTopLevel(line) {
		idx := strings.IndexByte(part, ':')
		if idx < 0 {
			continue
		}
		key := stripQuotes(part[:idx])
		raw := strings.TrimSpace(part[idx+1:])
		if strings.HasPrefix(raw, `"`) {
			fields[key] = unescape(stripQuotes(raw))
		} else {
			fields[key] = raw
		}
	}
	return fields
}

func splitTopLevel(s string) []string {
	var parts []string
	var current strings.Builder
	inString := false
	escape := false

	for _, r := range s {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		switch {
		case r == '\\' && inString:
			escape = true
			current.WriteRune(r)
		case r == '"':
			inString = !inString
			current.WriteRune(r)
		case r == ',' && !inString:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// unescape decodes the sequences produced by Escape
func unescape(s string) string {
	var result strings.Builder
	escape := false

	for _, r := range s {
		if escape {
			switch r {
			case '\\':
				result.WriteRune('\\')
			case '"':
				result.WriteRune('"')
			case 'n':
				result.WriteRune('\n')
			case 'r':
				result.WriteRune('\r')
			default:
				// unknown escape, keep it verbatim
				result.WriteRune('\\')
				result.WriteRune(r)
			}
			escape = false
			continue
		}

		if r == '\\' {
			escape = true
			continue
		}

		result.WriteRune(r)
	}

	// dangling backslash at the end
	if escape {
		result.WriteRune('\\')
	}

	return result.String()
}

// Escape escapes backslash, double quote, newline and carriage return.
func Escape(s string) string {
	var result strings.Builder

	for _, r := range s {
		switch r {
		case '\\':
			result.WriteString(`\\`)
		case '"':
			result.WriteString(`\"`)
		case '\n':
			result.WriteString(`\n`)
		case '\r':
			result.WriteString(`\r`)
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
