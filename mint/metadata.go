// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package mint

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
)

// Defaults of the token metadata documents.
const (
	DefaultExternalURL     = "https://llm-rater.kasra.codes"
	DefaultBackgroundColor = "D2E8DF"
)

// imageByLLM is the stock artwork per favorite, used when a row has no
// rendered image yet.
var imageByLLM = map[string]string{
	"claude-3.5": "https://images.kasra.codes/claude-3.5.png",
	"gemini-2.0": "https://images.kasra.codes/gemini-2.0.png",
	"gpt-4.5":    "https://images.kasra.codes/gpt-4.5.png",
}

// Attribute is an ERC-721 metadata trait.
type Attribute struct {
	TraitType   string      `json:"trait_type"`
	DisplayType string      `json:"display_type,omitempty"`
	Value       interface{} `json:"value"`
}

// TokenMetadata is the ERC-721 metadata document of a minted token.
type TokenMetadata struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Image           string      `json:"image"`
	ExternalURL     string      `json:"external_url"`
	BackgroundColor string      `json:"background_color"`
	Attributes      []Attribute `json:"attributes"`
}

// Catalog serves token metadata from the record store.
type Catalog struct {
	store       RecordStore
	externalURL string

	// legacyRow stands in for token 0, which was minted before rows were
	// stored reliably and has no row of its own.  Zero disables it.
	legacyRow int64
	log       log.Logger
}

// NewCatalog creates a metadata catalog.  legacyRow names the row whose data
// is served for token 0 when no row carries that id.
func NewCatalog(store RecordStore, externalURL string, legacyRow int64) *Catalog {
	if externalURL == "" {
		externalURL = DefaultExternalURL
	}
	return &Catalog{
		store:       store,
		externalURL: externalURL,
		legacyRow:   legacyRow,
		log:         log.New("module", "catalog"),
	}
}

// Metadata returns the metadata document of tokenID or ErrRowNotFound.
func (c *Catalog) Metadata(ctx context.Context, tokenID uint64) (*TokenMetadata, error) {
	row, err := c.store.GetByToken(ctx, tokenID)
	if errors.Is(err, ErrRowNotFound) && tokenID == 0 && c.legacyRow != 0 {
		// Only token 0 gets this treatment; other ids without a row are
		// genuinely unknown.
		c.log.Debug("Serving legacy row for token 0", "row", c.legacyRow)
		row, err = c.store.Get(ctx, c.legacyRow)
	}
	if err != nil {
		return nil, err
	}
	return c.document(tokenID, row), nil
}

func (c *Catalog) document(tokenID uint64, row *Row) *TokenMetadata {
	image, ok := imageByLLM[row.FavoriteLLM]
	if !ok {
		image = imageByLLM["claude-3.5"]
	}
	if row.ImageURL != nil && *row.ImageURL != "" {
		image = *row.ImageURL
	}
	chosen := row.FavoriteLLM
	if chosen == "" {
		chosen = "Unknown"
	}
	var analysed interface{}
	if !row.CreatedAt.IsZero() {
		analysed = row.CreatedAt.Unix()
	}
	return &TokenMetadata{
		Name:            fmt.Sprintf("AI Personality Mirror #%d", tokenID),
		Description:     "This NFT represents a user's AI personality analysis results, showing which AI model best understands their online presence.",
		Image:           image,
		ExternalURL:     fmt.Sprintf("%s/tokens/%d", c.externalURL, tokenID),
		BackgroundColor: DefaultBackgroundColor,
		Attributes: []Attribute{
			{TraitType: "Chosen AI", Value: chosen},
			{TraitType: "Analysis Date", DisplayType: "date", Value: analysed},
		},
	}
}
