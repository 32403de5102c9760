// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamio

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v2"
)

// Config is the YAML-decodable realization of spec.md §6's two
// configuration options: buffer capacity and stream-construction
// choice.
type Config struct {
	// BufferCapacity is the working buffer size in bytes. Config only
	// records it: BuildConstruction does not read it, and Config
	// allocates no buffer and builds no Writer or Reader.
	BufferCapacity int `yaml:"buffer_capacity"`
	// Construction selects the stream construction: "be32" or "le31".
	Construction string `yaml:"construction"`
}

// ParseConfig decodes a YAML document into a Config.
func ParseConfig(doc []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("streamio: parse config: %w", err)
	}
	return &cfg, nil
}

// BuildConstruction builds the Construction named by cfg.Construction
// over a ChaCha20-Poly1305 AEAD keyed by key.
func (cfg *Config) BuildConstruction(key []byte) (Construction, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("streamio: %w", err)
	}
	switch cfg.Construction {
	case "", "be32":
		return BE32(aead), nil
	case "le31":
		return LE31(aead), nil
	default:
		return nil, fmt.Errorf("streamio: unknown construction %q", cfg.Construction)
	}
}
