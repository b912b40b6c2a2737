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
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	XMLName xml.Name `xml:"urn:people person"`
	ID      int      `xml:"id,attr"`
	Name    string   `xml:"name"`
}

func TestToXMLString(t *testing.T) {
	p := &person{ID: 7, Name: "Ann"}

	s, err := ToXMLString(p, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, xml.Header))
	assert.Contains(t, s, `<person id="7">`)
	assert.Contains(t, s, "\n  <name>Ann</name>")
	assert.NotContains(t, s, "xmlns")

	s, err = ToXMLString(p, Options{OmitDeclaration: true, KeepNamespaces: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, `<person xmlns="urn:people" id="7">`))
}

func TestNilSource(t *testing.T) {
	var p *person
	_, err := ToXMLString(p, Options{})
	assert.ErrorIs(t, err, ErrNilSource)
	_, err = ToXMLStream(nil)
	assert.ErrorIs(t, err, ErrNilSource)
	assert.ErrorIs(t, ToXMLFile(nil, "x.xml"), ErrNilSource)
	assert.ErrorIs(t, ToXMLFile(&person{}, ""), ErrNoPath)
}

func TestStreamAndFile(t *testing.T) {
	p := &person{ID: 1, Name: "Bo"}

	r, err := ToXMLStream(p)
	require.NoError(t, err)
	streamed, err := io.ReadAll(r)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "person.xml")
	require.NoError(t, ToXMLFile(p, path))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(streamed), string(written))

	var back struct {
		ID   int    `xml:"id,attr"`
		Name string `xml:"name"`
	}
	require.NoError(t, xml.Unmarshal(written, &back))
	assert.Equal(t, "Bo", back.Name)
	assert.Equal(t, 1, back.ID)
}
