// Package scanreport implements the line-oriented key=value report a
// probe child writes on stdout. Success is a sequence of key=value
// lines followed by exit code 0; failure is a single error=<message>
// line and a non-zero exit.
package scanreport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rackhost.audio/cli/internal/core/domain"
)

// Report keys. Key order on the wire is not significant.
const (
	KeyPath         = "path"
	KeyName         = "name"
	KeyVendor       = "vendor"
	KeyType         = "type"
	KeyIs64Bit      = "is64Bit"
	KeyHasEditor    = "hasEditor"
	KeyNumInputs    = "numInputs"
	KeyNumOutputs   = "numOutputs"
	KeyUniqueID     = "uniqueId"
	KeyIsInstrument = "isInstrument"
	KeyValidated    = "validated"
	KeyError        = "error"
)

// Parse reads a probe report. Malformed lines are ignored, not fatal;
// an error= line short-circuits parsing and is surfaced verbatim in
// the descriptor's ErrorMsg. Empty input yields an unvalidated
// descriptor (the child was killed before reporting).
func Parse(r io.Reader) (domain.PluginDescriptor, error) {
	var desc domain.PluginDescriptor

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case KeyPath:
			desc.Path = value
		case KeyName:
			desc.Name = value
		case KeyVendor:
			desc.Vendor = value
		case KeyType:
			desc.Format = domain.ParseFormatKind(value)
		case KeyIs64Bit:
			desc.Is64Bit = value == "true"
		case KeyHasEditor:
			desc.HasEditor = value == "true"
		case KeyNumInputs:
			if n, err := strconv.Atoi(value); err == nil {
				desc.NumInputs = n
			}
		case KeyNumOutputs:
			if n, err := strconv.Atoi(value); err == nil {
				desc.NumOutputs = n
			}
		case KeyUniqueID:
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				desc.UniqueID = uint32(n)
			}
		case KeyIsInstrument:
			desc.IsInstrument = value == "true"
		case KeyValidated:
			desc.Validated = value == "true"
		case KeyError:
			desc.Validated = false
			desc.ErrorMsg = value
			return desc, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return desc, fmt.Errorf("reading probe report: %w", err)
	}

	return desc, nil
}

// Write emits the success report for desc.
func Write(w io.Writer, desc domain.PluginDescriptor) error {
	lines := []string{
		KeyPath + "=" + desc.Path,
		KeyName + "=" + desc.Name,
		KeyVendor + "=" + desc.Vendor,
		KeyType + "=" + desc.Format.String(),
		KeyIs64Bit + "=" + boolString(desc.Is64Bit),
		KeyHasEditor + "=" + boolString(desc.HasEditor),
		KeyNumInputs + "=" + strconv.Itoa(desc.NumInputs),
		KeyNumOutputs + "=" + strconv.Itoa(desc.NumOutputs),
		KeyUniqueID + "=" + strconv.FormatUint(uint64(desc.UniqueID), 10),
		KeyIsInstrument + "=" + boolString(desc.IsInstrument),
		KeyValidated + "=" + boolString(desc.Validated),
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteError emits the single-line failure report.
func WriteError(w io.Writer, reason string) error {
	// The protocol is line-oriented; a reason containing newlines would
	// desync the parser.
	reason = strings.ReplaceAll(reason, "\n", " ")
	_, err := fmt.Fprintf(w, "%s=%s\n", KeyError, reason)
	return err
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
