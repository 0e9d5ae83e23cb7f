package xhttp

import (
	"encoding/json"
)

const contentTypeJSON = "application/json; charset=utf-8"

func WriteJSON(ctx *RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		ctx.Response.Header.Set("Content-Type", contentTypeJSON)
		ctx.SetStatusCode(StatusInternalServerError)
		ctx.SetBodyString(`{"error":"internal error"}`)
		return
	}
	ctx.Response.Header.Set("Content-Type", contentTypeJSON)
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func WriteError(ctx *RequestCtx, status int, msg string) {
	WriteJSON(ctx, status, map[string]string{"error": msg})
}

func ReadJSON(ctx *RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

// Query returns the query argument key, empty when absent.
func Query(ctx *RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// Param returns the router path parameter name.
func Param(ctx *RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
