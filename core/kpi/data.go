package kpi

import (
	"encoding/json"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
)

const DateLayout = "2006-01-02"

var ErrInvalidData = errors.New("invalid kpi data")

type SalesPoint struct {
	Date  string  `json:"date"`
	Sales float64 `json:"sales"`
}

type AsinStat struct {
	ASIN    string  `json:"asin"`
	Revenue float64 `json:"revenue"`
	Rating  float64 `json:"rating"`
}

type BuyerStat struct {
	State  string `json:"state"`
	Orders int    `json:"orders"`
}

// Data is the content of data.json.
type Data struct {
	SalesData []SalesPoint `json:"salesData"`
	AsinData  []AsinStat   `json:"asinData"`
	BuyerData []BuyerStat  `json:"buyerData"`
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidData, format, args...)
}

// Validate stops at the first bad record and names it.
func (d *Data) Validate() error {
	if len(d.SalesData) == 0 {
		return invalid("salesData is empty")
	}
	for i, s := range d.SalesData {
		if _, err := time.Parse(DateLayout, s.Date); err != nil {
			return invalid("salesData[%d].date %q is not YYYY-MM-DD", i, s.Date)
		}
		if s.Sales < 0 {
			return invalid("salesData[%d].sales is negative: %v", i, s.Sales)
		}
	}

	if len(d.AsinData) == 0 {
		return invalid("asinData is empty")
	}
	for i, a := range d.AsinData {
		switch {
		case a.ASIN == "":
			return invalid("asinData[%d].asin is empty", i)
		case a.Revenue < 0:
			return invalid("asinData[%d].revenue is negative: %v", i, a.Revenue)
		case a.Rating < 0 || a.Rating > 5:
			return invalid("asinData[%d].rating %v is outside [0, 5]", i, a.Rating)
		}
	}

	seen := make(map[string]int, len(d.BuyerData))
	for i, b := range d.BuyerData {
		if b.State == "" {
			return invalid("buyerData[%d].state is empty", i)
		}
		if b.Orders < 0 {
			return invalid("buyerData[%d].orders is negative: %d", i, b.Orders)
		}
		if j, ok := seen[b.State]; ok {
			return invalid("buyerData[%d].state %q repeats buyerData[%d]", i, b.State, j)
		}
		seen[b.State] = i
	}
	return nil
}

// rawData keeps every record as its raw fields so a missing number can be
// told apart from a zero.
type rawData struct {
	SalesData []map[string]json.RawMessage `json:"salesData"`
	AsinData  []map[string]json.RawMessage `json:"asinData"`
	BuyerData []map[string]json.RawMessage `json:"buyerData"`
}

func (r *rawData) checkPresent() error {
	for _, c := range []struct {
		name    string
		records []map[string]json.RawMessage
		fields  []string
	}{
		{"salesData", r.SalesData, []string{"date", "sales"}},
		{"asinData", r.AsinData, []string{"asin", "revenue", "rating"}},
		{"buyerData", r.BuyerData, []string{"state", "orders"}},
	} {
		for i, rec := range c.records {
			for _, f := range c.fields {
				if v, ok := rec[f]; !ok || string(v) == "null" {
					return invalid("%s[%d].%s is missing", c.name, i, f)
				}
			}
		}
	}
	return nil
}

func Decode(r io.Reader) (*Data, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read kpi data")
	}
	var raw rawData
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "decode kpi data")
	}
	if err := raw.checkPresent(); err != nil {
		return nil, err
	}
	d := &Data{}
	if err := json.Unmarshal(b, d); err != nil {
		return nil, errors.Wrap(err, "decode kpi data")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func Load(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open kpi data")
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return d, nil
}

func (d *Data) Save(path string) error {
	b, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode kpi data")
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "write kpi data")
}

var sampleAsins = []AsinStat{
	{ASIN: "B08XYZ123A", Revenue: 45000, Rating: 4.8},
	{ASIN: "B08XYZ123B", Revenue: 32000, Rating: 4.2},
	{ASIN: "B08XYZ123C", Revenue: 25000, Rating: 4.5},
	{ASIN: "B08XYZ123D", Revenue: 18000, Rating: 3.9},
	{ASIN: "B08XYZ123E", Revenue: 12000, Rating: 4.1},
}

// StateNames are the full names the us-atlas topology uses for its features.
var StateNames = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado",
	"Connecticut", "Delaware", "Florida", "Georgia", "Hawaii", "Idaho",
	"Illinois", "Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana",
	"Maine", "Maryland", "Massachusetts", "Michigan", "Minnesota",
	"Mississippi", "Missouri", "Montana", "Nebraska", "Nevada",
	"New Hampshire", "New Jersey", "New Mexico", "New York",
	"North Carolina", "North Dakota", "Ohio", "Oklahoma", "Oregon",
	"Pennsylvania", "Rhode Island", "South Carolina", "South Dakota",
	"Tennessee", "Texas", "Utah", "Vermont", "Virginia", "Washington",
	"West Virginia", "Wisconsin", "Wyoming",
}

// Generate builds a month of synthetic dashboard data: daily sales for
// January 2025 in [500, 2000), the five sample ASINs and 50..2000 orders
// for every state.
func Generate(rng *rand.Rand) *Data {
	d := &Data{AsinData: append([]AsinStat(nil), sampleAsins...)}

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day := start; day.Month() == time.January; day = day.AddDate(0, 0, 1) {
		d.SalesData = append(d.SalesData, SalesPoint{
			Date:  day.Format(DateLayout),
			Sales: float64(500 + rng.Intn(1500)),
		})
	}
	for _, state := range StateNames {
		d.BuyerData = append(d.BuyerData, BuyerStat{State: state, Orders: 50 + rng.Intn(1951)})
	}
	return d
}
