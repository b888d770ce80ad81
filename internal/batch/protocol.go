package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"watermark/internal/config"
	"watermark/internal/faults"
)

// Messages exchanged with isolated workers, one JSON document per line. The
// parent writes a workerInit followed by jobRequests on the worker's stdin;
// the worker answers with a workerReady and then one jobResult per request
// on stdout. Worker logs go to stderr.

type workerInit struct {
	RunID    string        `json:"run_id"`
	Worker   int           `json:"worker"`
	LogLevel string        `json:"log_level"`
	Config   config.Config `json:"config"`
}

type workerReady struct {
	PID       int    `json:"pid"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

type jobRequest struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
}

type jobResult struct {
	Index         int    `json:"index"`
	Source        string `json:"source"`
	Output        string `json:"output,omitempty"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Precompressed bool   `json:"precompressed,omitempty"`
	Reclaimed     bool   `json:"reclaimed,omitempty"`
	ElapsedMS     int64  `json:"elapsed_ms"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Error         string `json:"error,omitempty"`
}

// errorFields flattens err for transport.
func errorFields(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	return faults.Kind(err), err.Error()
}

// errorFromFields rebuilds a classified error on the receiving side.
func errorFromFields(kind, message string) error {
	if kind == "" && message == "" {
		return nil
	}
	return faults.FromKind(kind, message)
}

const maxMessageBytes = 4 << 20

func newMessageScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)
	return scanner
}

// readMessage decodes the next line from scanner into v. It returns io.EOF
// when the stream ended cleanly.
func readMessage(scanner *bufio.Scanner, v any) error {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	if err := json.Unmarshal(scanner.Bytes(), v); err != nil {
		return fmt.Errorf("decode worker message: %w", err)
	}
	return nil
}

var errWorkerGone = errors.New("worker exited before replying")
