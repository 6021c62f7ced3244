package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d := ParseDate("2021-03-04")
	assert.False(t, d.IsZero())
	assert.Equal(t, "2021-03-04", d.String())

	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("03/04/2021").IsZero())
	assert.True(t, ParseDate("2021-02-30").IsZero())
}

func TestDate_AddDays(t *testing.T) {
	d := NewDate(2021, time.February, 25)
	assert.Equal(t, "2021-03-07", d.AddDays(10).String())
	assert.True(t, Date{}.AddDays(10).IsZero())
}

func TestMinMaxDate(t *testing.T) {
	a := NewDate(2021, time.January, 5)
	b := NewDate(2021, time.January, 2)

	assert.Equal(t, b, MinDate(a, Date{}, b))
	assert.Equal(t, a, MaxDate(Date{}, a, b))
	assert.True(t, MinDate().IsZero())
	assert.True(t, MaxDate(Date{}, Date{}).IsZero())
}

func TestDate_JSON(t *testing.T) {
	events := NewCovidEvents()
	events[PositiveTest] = NewDate(2021, time.January, 2)

	b, err := json.Marshal(events)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"PositiveTest":"2021-01-02"`)
	assert.Contains(t, string(b), `"SymptomsEnd":""`)

	var decoded struct {
		A Date `json:"a"`
		B Date `json:"b"`
		C Date `json:"c"`
		D Date `json:"d"`
	}
	err = json.Unmarshal([]byte(`{"a":"2021-05-06","b":"","c":"garbage","d":null}`), &decoded)
	require.NoError(t, err)
	assert.Equal(t, "2021-05-06", decoded.A.String())
	assert.True(t, decoded.B.IsZero())
	assert.True(t, decoded.C.IsZero())
	assert.True(t, decoded.D.IsZero())
}

func TestDate_ScanValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2021, time.July, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2021-07-09", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, d.Time(), v)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	v, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, d.Scan([]byte("2020-12-31")))
	assert.Equal(t, "2020-12-31", d.String())

	assert.Error(t, d.Scan(42))
}

func TestPairKey_Unordered(t *testing.T) {
	assert.Equal(t, NewPairKey("a", "b"), NewPairKey("b", "a"))
	assert.Equal(t, NewOngoingExposure("x", "y").Key(), NewOngoingExposure("y", "x").Key())
}

func TestParseCovidEventName(t *testing.T) {
	name, err := ParseCovidEventName("SymptomsEnd")
	require.NoError(t, err)
	assert.Equal(t, SymptomsEnd, name)

	_, err = ParseCovidEventName("Fever")
	assert.Error(t, err)
}

func TestPerson_CloneIsDeep(t *testing.T) {
	p := NewPerson("h", "A")
	c := p.Clone()
	c.CovidEvents[PositiveTest] = NewDate(2021, time.January, 1)

	assert.True(t, p.CovidEvents.Get(PositiveTest).IsZero())
	assert.Len(t, p.CovidEvents, 4)
}
