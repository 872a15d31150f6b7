// Package parser turns raw VRChat client log text into typed LogRecords.
// Format knowledge lives here and nowhere else: downstream packages only
// see records, never log lines.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// ProgressCallback is called periodically during parsing to report progress.
type ProgressCallback func(linesProcessed int, bytesProcessed int64, totalBytes int64)

// RecordFunc receives each recognized record in file order.
type RecordFunc func(rec models.LogRecord)

// VRChatParser tokenizes VRChat client logs line by line. Lines that
// match no known pattern are kind Other and skipped; a line that matches
// an event pattern but cannot be decoded yields a ParseError and parsing
// continues. Only whole-file problems (unreadable input) abort.
type VRChatParser struct {
	patterns *PatternSet
}

// NewVRChatParser creates a parser with the built-in patterns.
func NewVRChatParser() *VRChatParser {
	return &VRChatParser{patterns: DefaultPatterns()}
}

// NewVRChatParserWithPatterns creates a parser using a custom pattern set,
// typically loaded from a YAML pattern file.
func NewVRChatParserWithPatterns(set *PatternSet) *VRChatParser {
	return &VRChatParser{patterns: set}
}

func (p *VRChatParser) Name() string {
	return "vrchat"
}

// CanParse samples the head of the file and accepts it when at least one
// timestamped line is found. VRChat logs are mostly untimestamped Unity
// noise, so the bar is deliberately low.
func (p *VRChatParser) CanParse(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	checked := 0
	for scanner.Scan() && checked < 50 {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		checked++
		if p.patterns.timestamp.MatchString(line) {
			return true, nil
		}
	}
	return false, nil
}

// TokenizeLine classifies a single line. Unrecognized lines return a
// record with kind Other and no error; an event line with an unparsable
// timestamp returns kind Other plus a ParseError.
func (p *VRChatParser) TokenizeLine(line string, lineNum int) (models.LogRecord, *models.ParseError) {
	other := models.LogRecord{Kind: models.RecordOther, Raw: line, Line: lineNum}

	for _, pat := range p.patterns.patterns {
		m := pat.Regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		tm := p.patterns.timestamp.FindStringSubmatch(line)
		if tm == nil {
			// Event text without a leading timestamp: carried-over
			// stack trace or wrapped line. Not attributable, skip.
			return other, nil
		}
		ts, err := FastTimestamp(tm[1])
		if err != nil {
			return other, &models.ParseError{Line: lineNum, Content: line, Reason: "invalid timestamp"}
		}

		rec := models.LogRecord{
			Timestamp: ts,
			Kind:      pat.Kind,
			Raw:       line,
			Line:      lineNum,
		}
		switch pat.Kind {
		case models.RecordInstanceEnter:
			rec.InstanceID = m[1]
		case models.RecordRoomName:
			rec.RoomName = strings.TrimSpace(m[1])
		case models.RecordUserJoin, models.RecordUserJoinComplete, models.RecordUserLeave:
			rec.Username = strings.TrimSpace(m[1])
			if len(m) > 2 {
				rec.UserID = m[2]
			}
			if rec.Username == "" {
				return other, &models.ParseError{Line: lineNum, Content: line, Reason: "empty username"}
			}
		case models.RecordInstanceExit:
			// no payload
		}
		return rec, nil
	}
	return other, nil
}

// ParseFile streams the file through the tokenizer, invoking onRecord
// for every event record in file order. Returns the per-line
// diagnostics; the error is non-nil only for whole-file failures.
func (p *VRChatParser) ParseFile(filePath string, onRecord RecordFunc, onProgress ProgressCallback) ([]models.ParseError, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	return p.parse(file, info.Size(), onRecord, onProgress)
}

// ParseReader is ParseFile over an arbitrary reader; progress reporting
// degrades gracefully when the total size is unknown (pass 0).
func (p *VRChatParser) ParseReader(r io.Reader, totalBytes int64, onRecord RecordFunc) ([]models.ParseError, error) {
	return p.parse(r, totalBytes, onRecord, nil)
}

func (p *VRChatParser) parse(r io.Reader, totalBytes int64, onRecord RecordFunc, onProgress ProgressCallback) ([]models.ParseError, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	// Sniff the head for binary content before committing to a parse.
	head, _ := br.Peek(4096)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, fmt.Errorf("input is not a text log file")
	}

	scanner := bufio.NewScanner(br)
	// VRChat logs interleave long Unity stack traces; 1MB per line.
	const maxScannerBuffer = 1024 * 1024
	scanner.Buffer(make([]byte, 0, maxScannerBuffer), maxScannerBuffer)

	var diags []models.ParseError
	lineNum := 0
	var bytesRead int64

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		bytesRead += int64(len(line)) + 1

		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, perr := p.TokenizeLine(line, lineNum)
		if perr != nil {
			diags = append(diags, *perr)
			continue
		}
		if rec.Kind != models.RecordOther && onRecord != nil {
			onRecord(rec)
		}

		if onProgress != nil && lineNum%100000 == 0 {
			onProgress(lineNum, bytesRead, totalBytes)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if onProgress != nil {
		onProgress(lineNum, bytesRead, totalBytes)
	}
	return diags, nil
}
