// Package message defines the diagnostics returned to the caller when a query
// cannot produce a table. Localizable messages carry an identifier, a default
// text template and named parameters; rendering them into a language is left to
// the host. Pass-through messages carry engine text verbatim and have no ID.
package message

import "strings"

type Kind string

const (
	KindMissingQuery        Kind = "missing_query"
	KindCommentedQuery      Kind = "commented_query"
	KindTooManyStatements   Kind = "too_many_statements"
	KindInvalidTableName    Kind = "invalid_table_name"
	KindDuplicateColumnName Kind = "duplicate_column_name"
	KindSyntaxError         Kind = "syntax_error"
	KindGenericEngineError  Kind = "generic_engine_error"
)

type Message struct {
	Kind   Kind              `json:"kind"`
	ID     string            `json:"id,omitempty"`
	Text   string            `json:"text"`
	Params map[string]string `json:"params,omitempty"`
}

// Plain reports whether the message has no localized form.
func (m Message) Plain() bool {
	return m.ID == ""
}

// Render substitutes {name} placeholders in the default text.
func (m Message) Render() string {
	if len(m.Params) == 0 {
		return m.Text
	}
	pairs := make([]string, 0, len(m.Params)*2)
	for name, value := range m.Params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(m.Text)
}

func (m Message) String() string {
	return m.Render()
}

func MissingQuery() Message {
	return Message{
		Kind: KindMissingQuery,
		ID:   "badParam.sql.missing",
		Text: "Missing SQL SELECT statement",
	}
}

func CommentedQuery() Message {
	return Message{
		Kind: KindCommentedQuery,
		ID:   "badValue.sql.commentedQuery",
		Text: "Your query did nothing. Did you accidentally comment it out?",
	}
}

func TooManyStatements() Message {
	return Message{
		Kind: KindTooManyStatements,
		ID:   "badValue.sql.tooManyCommands",
		Text: "Only one query is allowed. Please remove the semicolon (;).",
	}
}

func InvalidTableName(tableName string) Message {
	return Message{
		Kind:   KindInvalidTableName,
		ID:     "badValue.sql.invalidTableName",
		Text:   `The only valid table name is "{table_name}"`,
		Params: map[string]string{"table_name": tableName},
	}
}

func DuplicateColumnName(colname string) Message {
	return Message{
		Kind:   KindDuplicateColumnName,
		ID:     "badValue.sql.duplicateColumnName",
		Text:   `Your query would produce two columns named {colname}. Please delete one or alias it with "AS".`,
		Params: map[string]string{"colname": colname},
	}
}

// SyntaxError keeps the engine's wording, which is already operator-facing.
func SyntaxError(raw string) Message {
	return Message{Kind: KindSyntaxError, Text: "SQL error " + raw}
}

func GenericEngineError(raw string) Message {
	return Message{Kind: KindGenericEngineError, Text: raw}
}

// Plaintext wraps raw engine text that is surfaced ahead of a structured message.
func Plaintext(raw string) Message {
	return Message{Kind: KindGenericEngineError, Text: raw}
}

func Kinds(messages []Message) []string {
	kinds := make([]string, 0, len(messages))
	for _, m := range messages {
		kinds = append(kinds, string(m.Kind))
	}
	return kinds
}
