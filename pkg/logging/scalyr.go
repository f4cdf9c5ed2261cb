package logging

import (
	"bytes"
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder writes one flat JSON object per entry in the layout Scalyr
// parses: timestamp, level, message, caller parts, then every field at the
// top level.
type ScalyrEncoder struct {
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// Clone copies the encoder together with fields added through With
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	return e.clone()
}

func (e *ScalyrEncoder) clone() *ScalyrEncoder {
	fields := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		fields.Fields[k] = v
	}
	return &ScalyrEncoder{MapObjectEncoder: fields, config: e.config}
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	enc := e.clone()
	for _, field := range fields {
		field.AddTo(enc.MapObjectEncoder)
	}

	logObj := enc.Fields
	logObj["timestamp"] = entry.Time.UTC().Format(time.RFC3339Nano)
	logObj["level"] = entry.Level.String()
	logObj["message"] = entry.Message
	if entry.LoggerName != "" {
		logObj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
		logObj["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	var raw bytes.Buffer
	jsonEnc := json.NewEncoder(&raw)
	jsonEnc.SetEscapeHTML(false)
	if err := jsonEnc.Encode(logObj); err != nil {
		return nil, err
	}

	// json.Encoder already terminates with '\n'
	buf := bufferPool.Get()
	buf.AppendBytes(bytes.TrimRight(raw.Bytes(), "\n"))
	lineEnding := e.config.LineEnding
	if lineEnding == "" {
		lineEnding = zapcore.DefaultLineEnding
	}
	buf.AppendString(lineEnding)
	return buf, nil
}
