package logger

import (
	"strings"

	"github.com/nulzo/llm-relay/internal/cli"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// coloredConsoleEncoder wraps zap's console encoder to syntax-highlight the
// trailing JSON field blob.
type coloredConsoleEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &coloredConsoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
	}
}

// Clone is required to implement the Encoder interface
func (c *coloredConsoleEncoder) Clone() zapcore.Encoder {
	return &coloredConsoleEncoder{
		Encoder: c.Encoder.Clone(),
	}
}

func (c *coloredConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := c.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	logLine := buf.String()

	// The console encoder separates metadata from structured fields with a
	// tab followed by the JSON blob.
	splitIdx := strings.Index(logLine, "\t{")
	if splitIdx != -1 {
		metaPart := logLine[:splitIdx+1]
		jsonPart := logLine[splitIdx+1:]

		newBuf := buffer.NewPool().Get()
		newBuf.AppendString(metaPart)
		newBuf.AppendString(cli.HighlightJSON(jsonPart))

		buf.Free()
		return newBuf, nil
	}

	return buf, nil
}
