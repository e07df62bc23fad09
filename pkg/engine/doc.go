// Package engine defines the vocabulary and the engine contract shared by every
// phonebridge boundary.
//
// # Overview
//
// Phone-number parsing itself is delegated to an external engine. This package
// describes what the boundary needs from that engine and the closed enumerations
// both sides of a boundary agree on:
//
//   - NumberFormat: E164, International, National, Rfc3966
//   - NumberType: the seventeen number categories, ending with Unknown
//   - ParsedNumber: the engine's parse result, carried back into the engine
//   - Engine: Parse, Render, Classify, IsValidNumber, RegionByCallingCode,
//     RegionForNumber
//
// # Ordinals
//
// Enumerations cross native boundaries as uint32 ordinals. Every constant is
// assigned explicitly; declaration order carries no meaning. ABIVersion changes
// whenever an ordinal is added, and no ordinal is ever renumbered or reused:
//
//	NumberFormat  E164=0 International=1 National=2 Rfc3966=3
//	NumberType    FixedLine=0 Mobile=1 FixedLineOrMobile=2 TollFree=3
//	              PremiumRate=4 SharedCost=5 PersonalNumber=6 Voip=7 Pager=8
//	              Uan=9 Emergency=10 Voicemail=11 ShortCode=12 StandardRate=13
//	              Carrier=14 NoInternational=15 Unknown=16
//
// Text encodings (JSON, YAML) use the symbolic names shown above.
//
// # Error Classification
//
// Failures are classified so that callers can branch without parsing messages:
//
//   - Unparseable: the text is not a phone number under the region
//   - UnknownRegion: region or calling code lookup miss
//   - Encoding: NULL or non-UTF-8 input
//   - InvalidArgument: a scalar outside its domain
//   - Internal: an engine fault, reported with a generic message
package engine
