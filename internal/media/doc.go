// Package media is the still-image decode backend of the loader.
//
// A Decoder opens a file, shrinks it to the requested box and applies the
// requested clockwise rotation. With libvips initialised (InitVips) it
// shrinks during decode, which keeps peak memory low for large JPEGs;
// otherwise it decodes with disintegration/imaging under the
// MaxImageDimension/MaxImagePixels limits. Formats neither can read are
// handed to an optional fallback such as ffmpeg.
//
// The package also draws the broken-image placeholder shown for failed
// loads and encodes thumbnails for the persistent store.
package media
