package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"jsoncal/internal/calendar"
	"jsoncal/internal/ics"
	"jsoncal/internal/model"
)

type format int

const (
	formatJSON format = iota
	formatYAML
	formatICS
)

type source struct {
	name   string
	data   []byte
	format format
}

// readSource loads name: "-" is stdin, http(s)/webcal URLs are fetched,
// anything else is a file. The format follows the extension, except that
// payloads starting with BEGIN:VCALENDAR are always iCalendar.
func readSource(ctx context.Context, name string, stdin io.Reader, fetcher *ics.Fetcher) (source, error) {
	src := source{name: name, format: formatJSON}

	var err error
	switch {
	case name == "-":
		src.data, err = io.ReadAll(stdin)
	case ics.IsURL(name):
		src.data, err = fetcher.Fetch(ctx, name)
		src.format = formatICS
	default:
		src.data, err = os.ReadFile(name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml":
			src.format = formatYAML
		case ".ics", ".ical":
			src.format = formatICS
		}
	}
	if err != nil {
		return source{}, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(src.data), []byte("BEGIN:VCALENDAR")) {
		src.format = formatICS
	}
	return src, nil
}

func (s source) validate(opts calendar.Options) (*model.Calendar, error) {
	switch s.format {
	case formatYAML:
		return calendar.ValidateYAML(s.data, opts)
	case formatICS:
		doc, err := ics.Decode(s.data)
		if err != nil {
			return nil, fmt.Errorf("decode iCalendar: %w", err)
		}
		return calendar.ValidateWith(doc, opts)
	default:
		return calendar.ValidateJSON(s.data, opts)
	}
}
