package wire

import (
	"bytes"
	"fmt"
)

// LogRecord is one log frame the guest sends to the host via the log port.
//
// Payload layout:
//
//	[level:u32][message:string][source:string][caller:string][source_file:string][line:i32]
type LogRecord struct {
	Level      LogLevel
	Message    string
	Source     string
	Caller     string
	SourceFile string
	Line       int32
}

// Encode serializes the record as a complete size-prefixed frame.
func (rec *LogRecord) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := WriteUint32(buf, uint32(rec.Level)); err != nil {
		return nil, fmt.Errorf("encode log level: %w", err)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"message", rec.Message},
		{"source", rec.Source},
		{"caller", rec.Caller},
		{"source file", rec.SourceFile},
	} {
		if err := WriteString(buf, field.value); err != nil {
			return nil, fmt.Errorf("encode log %s: %w", field.name, err)
		}
	}
	if err := WriteInt32(buf, rec.Line); err != nil {
		return nil, fmt.Errorf("encode log line: %w", err)
	}
	return FinishSizePrefixed(buf.Bytes())
}

// DecodeLogRecord parses a size-prefixed log frame.
func DecodeLogRecord(frame []byte) (*LogRecord, error) {
	payload, err := StripSizePrefix(frame)
	if err != nil {
		return nil, fmt.Errorf("decode log record: %w", err)
	}
	r := bytes.NewReader(payload)

	lvl, err := ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode log level: %w", err)
	}
	rec := &LogRecord{Level: LogLevel(lvl)}
	if rec.Message, err = ReadString(r); err != nil {
		return nil, fmt.Errorf("decode log message: %w", err)
	}
	if rec.Source, err = ReadString(r); err != nil {
		return nil, fmt.Errorf("decode log source: %w", err)
	}
	if rec.Caller, err = ReadString(r); err != nil {
		return nil, fmt.Errorf("decode log caller: %w", err)
	}
	if rec.SourceFile, err = ReadString(r); err != nil {
		return nil, fmt.Errorf("decode log source file: %w", err)
	}
	if rec.Line, err = ReadInt32(r); err != nil {
		return nil, fmt.Errorf("decode log line: %w", err)
	}
	if err := expectDrained(r, "log record"); err != nil {
		return nil, err
	}
	return rec, nil
}
