package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// booksCount is the number the built-in counter reports. A real deployment
// would wire this to a book catalog; the server ships with a fixed
// collection of one.
const booksCount = 1

var booksCountSchema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)

// BooksCountTool returns the descriptor of the built-in get_books_count
// tool.
func BooksCountTool() Tool {
	return Tool{
		Name:        "get_books_count",
		Description: "Get the current count of books in the collection",
		InputSchema: booksCountSchema,
	}
}

// HandleBooksCount implements get_books_count. It takes no arguments and
// reports the size of the book collection as a single text content item.
func HandleBooksCount(ctx context.Context, args map[string]any) ([]Content, error) {
	return []Content{
		{
			Type: ContentTypeText,
			Text: fmt.Sprintf("Current books count: %d", booksCount),
		},
	}, nil
}

// RegisterBuiltinTools registers the tools every talebook server exposes by
// default, currently just get_books_count.
func RegisterBuiltinTools(registry *ToolRegistry) error {
	return registry.Register(BooksCountTool(), HandleBooksCount)
}
