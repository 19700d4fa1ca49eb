// Package img2ascii turns images fetched by a host into ASCII art.
//
// A Poller writes the image URL to a key/value transport channel and
// checks for the host's base64 result on every Tick. When the result
// arrives the Converter decodes it, dithers the luminance onto a
// character ramp with Floyd-Steinberg error diffusion, prints the grid to
// a LineSink and, on request, renders the grid to a PNG and hands it to
// a Trigger.
package img2ascii
