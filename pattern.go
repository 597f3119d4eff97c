// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-archivestream.
//
// go-archivestream is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-archivestream is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-archivestream.  If not, see <https://www.gnu.org/licenses/>.

package archivestream

import (
	"fmt"
	"iter"
	"strings"
)

// VolumePattern is a split-archive naming family. Match is the suffix of
// the primary volume's address; sibling addresses are generated for the
// indexes Start through Stop.
type VolumePattern struct {
	volumeURL func(p *VolumePattern, base string, index int) string
	Match     string
	Format    string
	Start     int
	Stop      int
}

func standardVolumeURL(p *VolumePattern, base string, index int) string {
	return fmt.Sprintf(p.Format, base, index)
}

// legacyRARVolumeURL implements .r00 through .r99, after which WinRAR rolls
// the letter forward to .s00 and beyond.
func legacyRARVolumeURL(p *VolumePattern, base string, index int) string {
	return fmt.Sprintf(p.Format, base, 'r'+index/100, index%100)
}

// volumePatterns is checked in order; the first matching suffix wins.
var volumePatterns = []VolumePattern{
	{Match: ".part1.rar", Format: "%s.part%d.rar", volumeURL: standardVolumeURL, Start: 2, Stop: 9},
	{Match: ".part01.rar", Format: "%s.part%02d.rar", volumeURL: standardVolumeURL, Start: 2, Stop: 99},
	{Match: ".part001.rar", Format: "%s.part%03d.rar", volumeURL: standardVolumeURL, Start: 2, Stop: 999},
	{Match: ".rar", Format: "%s.%c%02d", volumeURL: legacyRARVolumeURL, Start: 0, Stop: 999},
}

// FindVolumePattern returns the naming family of the primary volume at url,
// or nil when url is not part of a recognized split archive. Matching is
// case-sensitive.
func FindVolumePattern(url string) *VolumePattern {
	for i := range volumePatterns {
		if strings.HasSuffix(url, volumePatterns[i].Match) {
			return &volumePatterns[i]
		}
	}
	return nil
}

// URL returns the address of sibling volume index for the primary volume
// at url.
func (p *VolumePattern) URL(url string, index int) string {
	return p.volumeURL(p, strings.TrimSuffix(url, p.Match), index)
}

// Volumes yields the candidate sibling addresses for the primary volume at
// url, in order. Callers stop at the first address that does not open.
func (p *VolumePattern) Volumes(url string) iter.Seq[string] {
	base := strings.TrimSuffix(url, p.Match)
	return func(yield func(string) bool) {
		for i := p.Start; i <= p.Stop; i++ {
			if !yield(p.volumeURL(p, base, i)) {
				return
			}
		}
	}
}
