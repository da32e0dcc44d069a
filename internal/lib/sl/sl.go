// Package sl содержит вспомогательные функции для структурированного логирования через slog.
package sl

import (
	"io"
	"log/slog"
)

// New создаёт логгер для окружения env: в local и dev текстовый с уровнем
// debug, в остальных JSON с уровнем info.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case "local", "dev":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Err возвращает атрибут "error" с текстом ошибки.
//
//	log.Error("failed to join plan", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Op возвращает атрибут "op" с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
