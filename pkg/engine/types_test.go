package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The ordinals below are part of the C and wasm ABIs. A failure here means a
// caller binary built against an older header would misread results.
func TestNumberFormatOrdinalsArePinned(t *testing.T) {
	want := map[NumberFormat]uint32{
		FormatE164:          0,
		FormatInternational: 1,
		FormatNational:      2,
		FormatRFC3966:       3,
	}
	for f, ordinal := range want {
		assert.Equal(t, ordinal, f.Ordinal(), f.String())
	}
	assert.Len(t, NumberFormats(), len(want))
}

func TestNumberTypeOrdinalsArePinned(t *testing.T) {
	want := []struct {
		typ     NumberType
		ordinal uint32
		name    string
	}{
		{TypeFixedLine, 0, "FixedLine"},
		{TypeMobile, 1, "Mobile"},
		{TypeFixedLineOrMobile, 2, "FixedLineOrMobile"},
		{TypeTollFree, 3, "TollFree"},
		{TypePremiumRate, 4, "PremiumRate"},
		{TypeSharedCost, 5, "SharedCost"},
		{TypePersonalNumber, 6, "PersonalNumber"},
		{TypeVoIP, 7, "Voip"},
		{TypePager, 8, "Pager"},
		{TypeUAN, 9, "Uan"},
		{TypeEmergency, 10, "Emergency"},
		{TypeVoicemail, 11, "Voicemail"},
		{TypeShortCode, 12, "ShortCode"},
		{TypeStandardRate, 13, "StandardRate"},
		{TypeCarrier, 14, "Carrier"},
		{TypeNoInternational, 15, "NoInternational"},
		{TypeUnknown, 16, "Unknown"},
	}

	types := NumberTypes()
	require.Len(t, types, len(want))
	for i, tt := range want {
		assert.Equal(t, tt.ordinal, tt.typ.Ordinal(), tt.name)
		assert.Equal(t, tt.name, tt.typ.String())
		assert.Equal(t, tt.typ, types[i])
	}
	assert.Equal(t, uint32(1), ABIVersion)
}

func TestNumberFormatFromOrdinal(t *testing.T) {
	tests := []struct {
		name    string
		ordinal uint32
		want    NumberFormat
		wantErr bool
	}{
		{name: "e164", ordinal: 0, want: FormatE164},
		{name: "rfc3966", ordinal: 3, want: FormatRFC3966},
		{name: "one past the end", ordinal: 4, wantErr: true},
		{name: "max uint32", ordinal: ^uint32(0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NumberFormatFromOrdinal(tt.ordinal)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrorClassInvalidArgument, ClassOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberTypeFromOrdinal(t *testing.T) {
	got, err := NumberTypeFromOrdinal(1)
	require.NoError(t, err)
	assert.Equal(t, TypeMobile, got)

	_, err = NumberTypeFromOrdinal(17)
	require.Error(t, err)
}

func TestVocabularyTextEncoding(t *testing.T) {
	t.Run("format round trip by name", func(t *testing.T) {
		data, err := json.Marshal(FormatNational)
		require.NoError(t, err)
		assert.JSONEq(t, `"National"`, string(data))

		var f NumberFormat
		require.NoError(t, json.Unmarshal([]byte(`"Rfc3966"`), &f))
		assert.Equal(t, FormatRFC3966, f)
	})

	t.Run("type round trip by name", func(t *testing.T) {
		data, err := json.Marshal(TypeFixedLineOrMobile)
		require.NoError(t, err)
		assert.JSONEq(t, `"FixedLineOrMobile"`, string(data))

		var typ NumberType
		require.NoError(t, json.Unmarshal([]byte(`"Voip"`), &typ))
		assert.Equal(t, TypeVoIP, typ)
	})

	t.Run("unknown names are rejected", func(t *testing.T) {
		var f NumberFormat
		assert.Error(t, json.Unmarshal([]byte(`"Pretty"`), &f))

		var typ NumberType
		assert.Error(t, json.Unmarshal([]byte(`"Landline"`), &typ))
	})

	t.Run("out of range values do not marshal", func(t *testing.T) {
		_, err := json.Marshal(NumberFormat(9))
		assert.Error(t, err)
		assert.Equal(t, "NumberType(99)", NumberType(99).String())
	})
}

func TestParsedNumberKeepsNative(t *testing.T) {
	native := struct{ raw string }{"x"}
	p := NewParsedNumber(44, 2079460000, native)
	assert.Equal(t, uint16(44), p.CallingCode)
	assert.Equal(t, uint64(2079460000), p.NationalNumber)
	assert.Equal(t, native, p.Native())
}
