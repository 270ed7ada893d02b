package code

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/scan"
	"github.com/jackleland/autospice/internal/utils"
)

// scanListPattern matches a bracketed value list ("[2.0, 4.0, 8.0]"), the
// markup used to request a parameter scan in an input file.
var scanListPattern = regexp.MustCompile(`^\[(.+)\]$`)

// InputFile is a parsed simulation input file. Values are kept as strings;
// typed accessors convert on demand so that unread sections pass through a
// rewrite untouched.
type InputFile struct {
	path string
	file *ini.File
}

// LoadInputFile parses the input file at path.
func LoadInputFile(path string) (*InputFile, error) {
	if !utils.IsFile(path) {
		return nil, &errs.NotFoundError{Kind: "input file", Path: path}
	}
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, errs.Configf("cannot parse input file %s: %v", path, err)
	}
	return &InputFile{path: path, file: f}, nil
}

// Path returns the location the input file was loaded from.
func (f *InputFile) Path() string {
	return f.path
}

// Name returns the input file's base name.
func (f *InputFile) Name() string {
	return filepath.Base(f.path)
}

// Get returns the raw string value of a key and whether it exists.
func (f *InputFile) Get(section, key string) (string, bool) {
	sec, err := f.file.GetSection(section)
	if err != nil {
		return "", false
	}
	if !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// Int returns the integer value of a key, or a ConfigError when the key is
// missing or not an integer.
func (f *InputFile) Int(section, key string) (int, error) {
	raw, ok := f.Get(section, key)
	if !ok {
		return 0, errs.Configf("input file %s is missing key %s in section [%s]", f.Name(), key, section)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errs.Configf("input file %s: key %s in section [%s] is not an integer: %q", f.Name(), key, section, raw)
	}
	return n, nil
}

// Set writes a value into the file, creating the section and key as needed.
func (f *InputFile) Set(section, key, value string) {
	f.file.Section(section).Key(key).SetValue(value)
}

// ApplyVariant substitutes one scan variant's concrete values into the file.
func (f *InputFile) ApplyVariant(v scan.Variant) {
	for _, val := range v.Values {
		f.Set(val.Section, val.Name, val.Value)
	}
}

// WriteTo saves the file, including any applied values, to path on fs.
func (f *InputFile) WriteTo(fs afero.Fs, path string) error {
	out, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := f.file.WriteTo(out); err != nil {
		return err
	}
	return nil
}

// ScanParameters returns the scan descriptors present in the file, in file
// order. A key requests a scan by holding a bracketed value list.
func (f *InputFile) ScanParameters() []scan.Parameter {
	var params []scan.Parameter
	for _, sec := range f.file.Sections() {
		for _, key := range sec.Keys() {
			m := scanListPattern.FindStringSubmatch(strings.TrimSpace(key.String()))
			if m == nil {
				continue
			}
			parts := strings.Split(m[1], ",")
			values := make([]string, 0, len(parts))
			for _, p := range parts {
				if v := strings.TrimSpace(p); v != "" {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				continue
			}
			params = append(params, scan.Parameter{
				Section: sec.Name(),
				Name:    key.Name(),
				Values:  values,
			})
		}
	}
	return params
}
