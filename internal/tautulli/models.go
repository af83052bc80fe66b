// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tautulli

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// envelope is the wrapper every Tautulli v2 API response carries. The
// payload type varies per command; everything else is fixed.
type envelope[T any] struct {
	Response struct {
		Result  string  `json:"result"`
		Message *string `json:"message"`
		Data    T       `json:"data"`
	} `json:"response"`
}

// Item is one entry from get_recently_added. Tautulli serializes Plex
// metadata attributes as strings, so numeric-looking fields stay strings on
// the wire and are parsed tolerantly where needed.
type Item struct {
	RatingKey            string `json:"rating_key"`
	ParentRatingKey      string `json:"parent_rating_key"`
	GrandparentRatingKey string `json:"grandparent_rating_key"`
	MediaType            string `json:"media_type"`
	Title                string `json:"title"`
	ParentTitle          string `json:"parent_title"`
	GrandparentTitle     string `json:"grandparent_title"`
	Year                 string `json:"year"`
	MediaIndex           string `json:"media_index"`
	ParentMediaIndex     string `json:"parent_media_index"`
	AddedAt              string `json:"added_at"`
	LibraryName          string `json:"library_name"`
	SectionID            string `json:"section_id"`
	Thumb                string `json:"thumb"`
}

// AddedAtUnix returns the added_at timestamp as Unix seconds. Missing or
// malformed values parse to zero, which sorts such items out of any
// lookback window instead of failing the fetch.
func (i Item) AddedAtUnix() int64 {
	ts, err := strconv.ParseInt(i.AddedAt, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// recentlyAddedData is the payload of get_recently_added. Newer Tautulli
// versions return an object with a recently_added key; very old versions
// return the bare array. Both decode to the same slice.
type recentlyAddedData struct {
	RecentlyAdded []Item `json:"recently_added"`
}

func (d *recentlyAddedData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &d.RecentlyAdded)
	}

	var obj struct {
		RecentlyAdded []Item `json:"recently_added"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	d.RecentlyAdded = obj.RecentlyAdded
	return nil
}

// serverIdentityData is the payload of get_server_identity.
type serverIdentityData struct {
	MachineIdentifier string `json:"machine_identifier"`
}
