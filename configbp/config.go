// Package configbp loads layered application configuration.
//
// Configuration is read from YAML files and environment variables into a
// Store, which flattens every value to a string addressed by a
// colon-separated, case-insensitive key path (e.g.
// "InitialConfiguration:KeyVaultKey"). Extra layers (Provider) such as a key
// vault can be stacked on top, and Bind decodes any sub-tree into a struct.
//
// For a single strictly typed file, ParseStrictFile is still available.
package configbp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/reddit/secureconfig.go/internal/limitopen"
	"github.com/reddit/secureconfig.go/log"
)

// ConfigPathEnv is the environment variable pointing to the base
// configuration file, used when no path is configured explicitly.
const ConfigPathEnv = "SECURECONFIG_CONFIG_PATH"

// envsubstReader replaces $VAR and ${VAR} with environment values line by
// line.
type envsubstReader struct {
	buffer bytes.Buffer
	lines  *bufio.Scanner
}

func (r *envsubstReader) Read(buf []byte) (int, error) {
	// Keep flushing pending data if we have it
	if r.buffer.Len() > 0 {
		return r.buffer.Read(buf)
	}

	if !r.lines.Scan() {
		if err := r.lines.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	r.buffer.WriteString(os.ExpandEnv(r.lines.Text()))
	r.buffer.WriteString("\n")
	return r.buffer.Read(buf)
}

func newEnvsubstReader(r io.Reader) io.Reader {
	return &envsubstReader{
		lines: bufio.NewScanner(r),
	}
}

func checkExt(path string) error {
	switch ext := filepath.Ext(path); strings.ToLower(ext) {
	case ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("configbp: unsupported config extension %q", ext)
	}
}

// ParseStrictFile parses configuration from the file at the given path.
//
// Environment variables (e.g. $FOO and ${FOO}) are substituted from the
// environment before parsing. Unknown fields are errors.
func ParseStrictFile(path string, ptr interface{}) error {
	if err := checkExt(path); err != nil {
		return err
	}
	f, _, err := limitopen.Open(path)
	if err != nil {
		return err // contains filename
	}
	defer f.Close()

	return ParseStrictYAML(f, ptr)
}

// ParseStrictYAML parses YAML read from the given Reader.
//
// Environment variables (e.g. $FOO and ${FOO}) are substituted from the
// environment before parsing. Unknown fields are errors.
func ParseStrictYAML(reader io.Reader, ptr interface{}) error {
	reader = newEnvsubstReader(reader)

	var debugOutput strings.Builder
	if log.With().Desugar().Core().Enabled(zap.DebugLevel) {
		reader = io.TeeReader(reader, &debugOutput)
	}

	dec := yaml.NewDecoder(reader)
	dec.SetStrict(true)
	if err := dec.Decode(ptr); err != nil {
		// The partial document helps with decode errors now that the file
		// isn't used literally.
		if debugOutput.Len() > 0 {
			log.Debugw(
				"Partial configuration",
				"type", fmt.Sprintf("%T", ptr),
				"err", err,
				"yaml", debugOutput.String(),
			)
		}
		return fmt.Errorf("configbp: parsing YAML into %T: %w", ptr, err)
	}
	return nil
}
