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

package utils

import "time"

type ZodiacSign int

const (
	Aries ZodiacSign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

var zodiacNames = [...]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

func (z ZodiacSign) String() string {
	if z < Aries || z > Pisces {
		return "unknown"
	}
	return zodiacNames[z]
}

// zodiacCusps[m] is the last day of month m+1 that still belongs to the
// earlier sign, followed by the two signs.
var zodiacCusps = [12]struct {
	lastDay       int
	before, after ZodiacSign
}{
	{19, Capricorn, Aquarius},
	{18, Aquarius, Pisces},
	{20, Pisces, Aries},
	{19, Aries, Taurus},
	{20, Taurus, Gemini},
	{20, Gemini, Cancer},
	{22, Cancer, Leo},
	{22, Leo, Virgo},
	{22, Virgo, Libra},
	{22, Libra, Scorpio},
	{21, Scorpio, Sagittarius},
	{21, Sagittarius, Capricorn},
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// FirstDay returns midnight of the first day of t's month, in t's location.
func FirstDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// LastDay returns midnight of the last day of t's month, in t's location.
func LastDay(t time.Time) time.Time {
	return FirstDay(t).AddDate(0, 1, -1)
}

func ResolveZodiac(t time.Time) ZodiacSign {
	c := zodiacCusps[t.Month()-1]
	if t.Day() <= c.lastDay {
		return c.before
	}
	return c.after
}
