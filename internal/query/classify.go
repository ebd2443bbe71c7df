package query

import (
	"strings"

	"github.com/selectsql/selectsql/internal/message"
)

type classifyRule struct {
	match func(*EngineError) bool
	build func(*EngineError) message.Message
}

// Order matters: the first matching rule wins. Unmatched failures are
// reported verbatim as generic engine errors.
var classifyRules = []classifyRule{
	{
		match: func(e *EngineError) bool { return e.Category == CategoryTooManyStatements },
		build: func(*EngineError) message.Message { return message.TooManyStatements() },
	},
	{
		match: hasAnyPrefix("no such table: ", "Catalog Error: Table with name "),
		build: func(*EngineError) message.Message { return message.InvalidTableName(InputTableName) },
	},
	{
		match: hasAnyPrefix("near ", "Parser Error: "),
		build: func(e *EngineError) message.Message { return message.SyntaxError(e.Text) },
	},
}

func classify(err *EngineError) message.Message {
	for _, rule := range classifyRules {
		if rule.match(err) {
			return rule.build(err)
		}
	}
	return message.GenericEngineError(err.Text)
}

func hasAnyPrefix(prefixes ...string) func(*EngineError) bool {
	return func(e *EngineError) bool {
		if e.Category != CategoryDatabase {
			return false
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(e.Text, prefix) {
				return true
			}
		}
		return false
	}
}
