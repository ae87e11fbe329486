// requestid переносит идентификатор запроса через context.Context.
package requestid

import "context"

type ctxKey struct{}

// Into кладёт id в контекст.
func Into(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From достаёт id из контекста; пустая строка, если его нет.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
