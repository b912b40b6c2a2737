/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package xmlser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
)

var (
	ErrNilSource = errors.New("xml source must not be nil")
	ErrNoPath    = errors.New("xml file path must not be empty")
)

const indent = "  "

var namespaceAttr = regexp.MustCompile(`\s+xmlns(:\w+)?="[^"]*"`)

// Options controls the document written by the helpers.
type Options struct {
	OmitDeclaration bool
	KeepNamespaces  bool
}

func checkSource(v any) error {
	if v == nil {
		return ErrNilSource
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ErrNilSource
	}
	return nil
}

// Write encodes v to w.
func Write(w io.Writer, v any, opts Options) error {
	if err := checkSource(v); err != nil {
		return err
	}
	var buf bytes.Buffer
	if !opts.OmitDeclaration {
		buf.WriteString(xml.Header)
	}
	enc := xml.NewEncoder(&buf)
	enc.Indent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %T as xml: %w", v, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	out := buf.Bytes()
	if !opts.KeepNamespaces {
		out = namespaceAttr.ReplaceAll(out, nil)
	}
	_, err := w.Write(out)
	return err
}

// ToXMLString returns v as an XML document. Namespace declarations are
// stripped unless KeepNamespaces is set.
func ToXMLString(v any, opts Options) (string, error) {
	var sb bytes.Buffer
	if err := Write(&sb, v, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ToXMLStream returns a reader over the full document for v, declaration
// included.
func ToXMLStream(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := Write(&buf, v, Options{}); err != nil {
		return nil, err
	}
	return &buf, nil
}

// ToXMLFile writes the document for v to path, replacing any existing file.
func ToXMLFile(v any, path string) (err error) {
	if path == "" {
		return ErrNoPath
	}
	if err := checkSource(v); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create xml file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, v, Options{})
}
