package fields

import (
	"testing"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/stretchr/testify/require"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func ptr(s string) *string {
	return &s
}

func newField(t *testing.T, dataType abstract.DataType, props map[string]string) Parser {
	p, err := New(abstract.RepositoryFieldConfig{Name: "f", DataType: dataType, Properties: props})
	require.NoError(t, err)
	return p
}

func requireFieldError(t *testing.T, p Parser, raw *string) {
	_, err := p.Parse(raw)
	require.Error(t, err)
	var fieldErr *FieldParseError
	require.True(t, xerrors.As(err, &fieldErr))
	require.Equal(t, "f", fieldErr.Field)
}

func TestString(t *testing.T) {
	p := newField(t, abstract.DataTypeString, nil)

	v, err := p.Parse(ptr("abc"))
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	v, err = p.Parse(ptr(""))
	require.NoError(t, err)
	require.Equal(t, "", v)

	v, err = p.Parse(nil)
	require.NoError(t, err)
	require.Nil(t, v)

	p = newField(t, abstract.DataTypeString, map[string]string{abstract.FieldPropertyDefaultValue: "xyz"})
	v, err = p.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, "xyz", v)
	v, err = p.Parse(ptr(""))
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestIntegerStrict(t *testing.T) {
	for _, dataType := range []abstract.DataType{abstract.DataTypeInteger, abstract.DataTypeLong} {
		t.Run(string(dataType), func(t *testing.T) {
			p := newField(t, dataType, nil)

			v, err := p.Parse(ptr("123"))
			require.NoError(t, err)
			require.EqualValues(t, 123, v)

			v, err = p.Parse(ptr(" 123 "))
			require.NoError(t, err)
			require.EqualValues(t, 123, v)

			requireFieldError(t, p, ptr("123.45"))
			requireFieldError(t, p, ptr(""))
			requireFieldError(t, p, ptr("123adb"))
			requireFieldError(t, p, nil)
		})
	}
}

func TestIntegerTypes(t *testing.T) {
	v, err := newField(t, abstract.DataTypeInteger, nil).Parse(ptr("7"))
	require.NoError(t, err)
	require.IsType(t, int32(0), v)

	v, err = newField(t, abstract.DataTypeLong, nil).Parse(ptr("7"))
	require.NoError(t, err)
	require.IsType(t, int64(0), v)

	requireFieldError(t, newField(t, abstract.DataTypeInteger, nil), ptr("3000000000"))
	v, err = newField(t, abstract.DataTypeLong, nil).Parse(ptr("3000000000"))
	require.NoError(t, err)
	require.Equal(t, int64(3000000000), v)
}

func TestIntegerWithNumberFormat(t *testing.T) {
	for _, dataType := range []abstract.DataType{abstract.DataTypeInteger, abstract.DataTypeLong} {
		t.Run(string(dataType), func(t *testing.T) {
			p := newField(t, dataType, map[string]string{abstract.FieldPropertyNumberFormat: "#,##0"})

			v, err := p.Parse(ptr("1,234"))
			require.NoError(t, err)
			require.EqualValues(t, 1234, v)

			v, err = p.Parse(ptr("2222d df22222"))
			require.NoError(t, err)
			require.EqualValues(t, 2222, v)

			v, err = p.Parse(ptr("123.11"))
			require.NoError(t, err)
			require.EqualValues(t, 123, v)

			v, err = p.Parse(ptr("-12"))
			require.NoError(t, err)
			require.EqualValues(t, -12, v)

			requireFieldError(t, p, ptr("abc"))

			_, err = p.Parse(nil)
			require.Error(t, err)
			require.True(t, xerrors.Is(err, ErrNullValue))
		})
	}
}

func TestDouble(t *testing.T) {
	p := newField(t, abstract.DataTypeDouble, nil)
	v, err := p.Parse(ptr("4.4"))
	require.NoError(t, err)
	require.Equal(t, 4.4, v)
	requireFieldError(t, p, ptr("4.4x"))
	requireFieldError(t, p, nil)

	p = newField(t, abstract.DataTypeDouble, map[string]string{abstract.FieldPropertyNumberFormat: "#,##0.00"})
	v, err = p.Parse(ptr("1,234.5 units"))
	require.NoError(t, err)
	require.Equal(t, 1234.5, v)
}

func TestBoolean(t *testing.T) {
	p := newField(t, abstract.DataTypeBoolean, nil)
	for _, raw := range []string{"true", "True", "TRUE"} {
		v, err := p.Parse(ptr(raw))
		require.NoError(t, err)
		require.Equal(t, true, v, raw)
	}
	for _, raw := range []*string{nil, ptr(""), ptr("asfd"), ptr("false")} {
		v, err := p.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, false, v)
	}

	p = newField(t, abstract.DataTypeBoolean, map[string]string{abstract.FieldPropertyTruePattern: "[Yy]es|1"})
	v, err := p.Parse(ptr("Yes"))
	require.NoError(t, err)
	require.Equal(t, true, v)
	v, err = p.Parse(ptr("yes please"))
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestDate(t *testing.T) {
	p := newField(t, abstract.DataTypeDate, map[string]string{abstract.FieldPropertyDateFormat: "yyyy-MM-dd HH:mm:ss"})
	expected := time.Date(2011, 1, 2, 3, 4, 5, 0, time.UTC)

	v, err := p.Parse(ptr("2011-01-02 03:04:05"))
	require.NoError(t, err)
	require.Equal(t, expected, v)

	v, err = p.Parse(ptr("2011-1-2 3:4:5"))
	require.NoError(t, err)
	require.Equal(t, expected, v)

	requireFieldError(t, p, ptr("2011-01-02"))
	requireFieldError(t, p, ptr(""))
	requireFieldError(t, p, nil)
}

func TestDateTimezone(t *testing.T) {
	p := newField(t, abstract.DataTypeDate, map[string]string{
		abstract.FieldPropertyDateFormat:   "yyyy-MM-dd'T'HH:mm:ss.SSS",
		abstract.FieldPropertyDateTimezone: "Asia/Tokyo",
	})
	v, err := p.Parse(ptr("2011-01-02T09:00:00.250"))
	require.NoError(t, err)
	require.Equal(t, time.Date(2011, 1, 2, 0, 0, 0, 250000000, time.UTC), v)
}

func TestDateRequiresFormat(t *testing.T) {
	_, err := New(abstract.RepositoryFieldConfig{Name: "f", DataType: abstract.DataTypeDate})
	require.Error(t, err)
}

func TestDefaultValueFallback(t *testing.T) {
	cases := []struct {
		dataType abstract.DataType
		props    map[string]string
		expected any
	}{
		{abstract.DataTypeInteger, map[string]string{abstract.FieldPropertyDefaultValue: "5"}, int32(5)},
		{abstract.DataTypeLong, map[string]string{abstract.FieldPropertyDefaultValue: "6"}, int64(6)},
		{abstract.DataTypeLong, map[string]string{abstract.FieldPropertyDefaultValue: "6", abstract.FieldPropertyNumberFormat: "#,##0"}, int64(6)},
		{abstract.DataTypeDouble, map[string]string{abstract.FieldPropertyDefaultValue: "1.5"}, 1.5},
		{abstract.DataTypeBoolean, map[string]string{abstract.FieldPropertyDefaultValue: "true"}, true},
		{abstract.DataTypeDate, map[string]string{
			abstract.FieldPropertyDefaultValue: "2000-01-01 00:00:00",
			abstract.FieldPropertyDateFormat:   "yyyy-MM-dd HH:mm:ss",
		}, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.dataType), func(t *testing.T) {
			p := newField(t, tc.dataType, tc.props)
			for _, raw := range []*string{nil, ptr(""), ptr("   ")} {
				v, err := p.Parse(raw)
				require.NoError(t, err)
				require.Equal(t, tc.expected, v)
			}
			if tc.dataType != abstract.DataTypeBoolean {
				v, err := p.Parse(ptr("not a value"))
				require.NoError(t, err)
				require.Equal(t, tc.expected, v)
			}
		})
	}
}

func TestInvalidDefaultValue(t *testing.T) {
	_, err := New(abstract.RepositoryFieldConfig{
		Name:       "f",
		DataType:   abstract.DataTypeInteger,
		Properties: map[string]string{abstract.FieldPropertyDefaultValue: "five"},
	})
	require.Error(t, err)
}

func TestDateLayout(t *testing.T) {
	cases := map[string]string{
		"yyyy-MM-dd HH:mm:ss":        "2006-1-2 15:4:5",
		"dd/MMM/yyyy:HH:mm:ss Z":     "2/Jan/2006:15:4:5 -0700",
		"yyyy-MM-dd'T'HH:mm:ss.SSSX": "2006-1-2T15:4:5.999Z07",
		"EEE, d MMM yy hh:mm a":      "Mon, 2 Jan 06 3:4 PM",
		"HH 'o''clock'":              "15 o'clock",
		"dd_MM_yyyy'T'HH":            "2_1_2006T15",
		"'at' HH:mm 'sharp'":         "at 15:4 sharp",
	}
	for pattern, expected := range cases {
		layout, _, err := DateLayout(pattern, "")
		require.NoError(t, err)
		require.Equal(t, expected, layout, pattern)
	}

	_, _, err := DateLayout("yyyy-MM-dd Q", "")
	require.Error(t, err)
	_, _, err = DateLayout("yyyy", "Mars/Base")
	require.Error(t, err)

	for _, pattern := range []string{
		"yyyy-MM-dd 'Mon'",
		"hh:mm 'PM'",
		"'Day 1' yyyy",
		"yyyy1MM",
		"yyyy-MM_dd",
		"'MST' HH",
	} {
		_, _, err := DateLayout(pattern, "")
		require.Error(t, err, pattern)
	}
}

func TestDateLiteralsParse(t *testing.T) {
	p := newField(t, abstract.DataTypeDate, map[string]string{abstract.FieldPropertyDateFormat: "'day' dd 'of' MMM yyyy"})
	raw := "day 02 of Jan 2011"
	v, err := p.Parse(&raw)
	require.NoError(t, err)
	require.Equal(t, time.Date(2011, 1, 2, 0, 0, 0, 0, time.UTC), v)
}
