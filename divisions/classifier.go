// Package divisions partitions an eligible roster into divisions by age
// category, gender and a height or weight band taken from a rule table.
package divisions

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/Dosada05/tournament-divisions/models"
)

type SkipReason string

const (
	SkipDuplicate          SkipReason = "duplicate competitor id"
	SkipInvalidGender      SkipReason = "gender is not male or female"
	SkipNoCategory         SkipReason = "no category covers the competitor's age"
	SkipMissingMeasurement SkipReason = "missing measurement required by the category"
	SkipNoBandsForGender   SkipReason = "category declares no bands for the competitor's gender"
	SkipNoBand             SkipReason = "measurement matches no band"
)

// Skip is a competitor left out of every division.
type Skip struct {
	CompetitorID int        `json:"competitor_id"`
	Reason       SkipReason `json:"reason"`
}

type Result struct {
	Divisions []models.Division `json:"divisions"`
	Skipped   []Skip            `json:"skipped"`
}

// SkippedIDs returns the ids of skipped competitors in input order.
func (r Result) SkippedIDs() []int {
	ids := make([]int, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		ids = append(ids, s.CompetitorID)
	}
	return ids
}

// Classify assigns every competitor to exactly one division or to the
// skipped list. The rule table is validated before any competitor is looked
// at; a malformed table returns a *ConfigError and nothing else.
func Classify(competitors []models.Competitor, table models.RuleTable) ([]models.Division, []int, error) {
	res, err := ClassifyWithReasons(competitors, table)
	if err != nil {
		return nil, nil, err
	}
	return res.Divisions, res.SkippedIDs(), nil
}

type bucketKey struct {
	category int
	gender   int
	band     int
}

// ClassifyWithReasons is Classify with a reason attached to every skip.
func ClassifyWithReasons(competitors []models.Competitor, table models.RuleTable) (Result, error) {
	if err := ValidateRuleTable(table); err != nil {
		return Result{}, err
	}

	buckets := make(map[bucketKey]*models.Division)
	seen := make(map[int]bool, len(competitors))
	res := Result{Skipped: []Skip{}}

	skip := func(id int, reason SkipReason) {
		res.Skipped = append(res.Skipped, Skip{CompetitorID: id, Reason: reason})
	}

	for _, c := range competitors {
		if seen[c.ID] {
			skip(c.ID, SkipDuplicate)
			continue
		}
		seen[c.ID] = true

		genderIdx := genderIndex(c.Gender)
		if genderIdx < 0 {
			skip(c.ID, SkipInvalidGender)
			continue
		}
		catIdx := categoryIndex(table, c.Age)
		if catIdx < 0 {
			skip(c.ID, SkipNoCategory)
			continue
		}
		cat := table.Categories[catIdx]

		if cat.BandCount(c.Gender) == 0 {
			skip(c.ID, SkipNoBandsForGender)
			continue
		}
		value := measurement(cat.Criterion, c)
		if value == nil {
			skip(c.ID, SkipMissingMeasurement)
			continue
		}
		bandIdx := bandIndex(cat, c.Gender, *value)
		if bandIdx < 0 {
			skip(c.ID, SkipNoBand)
			continue
		}

		key := bucketKey{category: catIdx, gender: genderIdx, band: bandIdx}
		d, ok := buckets[key]
		if !ok {
			d = newDivision(cat, c.Gender, bandIdx)
			buckets[key] = d
		}
		d.Participants = append(d.Participants, c.Participant())
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.category != b.category {
			return a.category < b.category
		}
		if a.gender != b.gender {
			return a.gender < b.gender
		}
		return a.band < b.band
	})

	res.Divisions = make([]models.Division, 0, len(keys))
	for i, k := range keys {
		d := buckets[k]
		d.Position = i
		d.RefreshReady()
		res.Divisions = append(res.Divisions, *d)
	}
	return res, nil
}

func genderIndex(g models.Gender) int {
	for i, known := range models.Genders {
		if g == known {
			return i
		}
	}
	return -1
}

func categoryIndex(table models.RuleTable, age int) int {
	for i, c := range table.Categories {
		if c.CoversAge(age) {
			return i
		}
	}
	return -1
}

func measurement(criterion models.Criterion, c models.Competitor) *float64 {
	if criterion == models.CriterionHeight {
		return c.HeightCm
	}
	return c.WeightKg
}

func bandIndex(cat models.Category, g models.Gender, v float64) int {
	if cat.Criterion == models.CriterionHeight {
		return heightBandIndex(cat.HeightBands[g], v)
	}
	return weightBandIndex(cat.WeightLimits[g], v)
}

func heightBandIndex(bands []models.HeightBand, v float64) int {
	for i, b := range bands {
		aboveLower := i == 0 || v > b.Lower
		if aboveLower && (b.Upper == nil || v <= *b.Upper) {
			return i
		}
	}
	return -1
}

func weightBandIndex(limits []float64, v float64) int {
	prev := 0.0
	for i, l := range limits {
		if l > 0 {
			if v > l {
				return i
			}
		} else if v > prev && v <= -l {
			return i
		}
		prev = math.Abs(l)
	}
	return -1
}

func newDivision(cat models.Category, g models.Gender, bandIdx int) *models.Division {
	d := &models.Division{
		Category:  cat.Name,
		Gender:    g,
		MinAge:    cat.MinAge,
		MaxAge:    cat.MaxAge,
		Criterion: cat.Criterion,
		BandIndex: bandIdx,
	}

	if cat.Criterion == models.CriterionHeight {
		band := cat.HeightBands[g][bandIdx]
		if bandIdx > 0 {
			d.RangeMin = floatPtr(band.Lower)
		}
		if band.Upper != nil {
			d.RangeMax = floatPtr(*band.Upper)
		}
		d.Name = fmt.Sprintf("%s %s %s", cat.Name, g.Title(), band.Label)
		return d
	}

	limits := cat.WeightLimits[g]
	limit := limits[bandIdx]
	if limit > 0 {
		d.RangeMin = floatPtr(limit)
	} else {
		if bandIdx > 0 {
			d.RangeMin = floatPtr(math.Abs(limits[bandIdx-1]))
		}
		d.RangeMax = floatPtr(-limit)
	}
	d.Name = fmt.Sprintf("%s %s %s", cat.Name, g.Title(), WeightLabel(limit))
	return d
}

// WeightLabel renders a signed weight limit the way division names show it,
// e.g. -33kg or +61kg.
func WeightLabel(limit float64) string {
	sign := "-"
	if limit > 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(math.Abs(limit), 'f', -1, 64) + "kg"
}

func floatPtr(v float64) *float64 {
	return &v
}
