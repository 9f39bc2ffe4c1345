// Package extract turns decoded text into word and e-mail sets.
//
// The Extractor applies an order-sensitive pipeline: HTML entities and
// percent-escapes are decoded first, e-mail addresses are taken from the
// decoded text, and only then is punctuation replaced and the text split
// into words. Which characters count as punctuation is defined by a
// versioned CharTable so output stays reproducible across releases.
//
// The package also provides the binary text capabilities used by the
// content router: PDF text (PDFText) and image metadata (ImageText). Both
// degrade to empty text when the input cannot be decoded.
package extract
