package workflow

import "strings"

// Category is one group of the output format picker.
type Category struct {
	Name    string
	Formats []string
}

var catalog = []Category{
	{Name: "Document", Formats: []string{"PDF", "DOCX", "TXT", "RTF", "ODT", "XPS"}},
	{Name: "Drawing", Formats: []string{"SVG", "EPS", "AI", "DXF"}},
	{Name: "Ebook", Formats: []string{"EPUB", "MOBI", "AZW3", "FB2"}},
	{Name: "Image", Formats: []string{"JPG", "PNG", "WEBP", "GIF", "BMP", "TIFF", "PPM", "XPM", "TGA", "DDS", "CUR", "PBM", "XBM", "RGB", "FAX", "HDR", "EXR", "PAL", "G4", "PCD", "JP2", "PFM", "PCX", "MNG", "PNM"}},
	{Name: "Video", Formats: []string{"MP4", "MOV", "AVI", "MKV", "WEBM", "FLV", "WMV", "MPEG", "TS", "OGV", "M4V", "MTS", "MPG", "RM", "3GP", "ASF", "MXF", "M2TS", "M2V", "HEVC", "3G2", "F4V", "RMVB", "DIVX", "VOB"}},
	{Name: "Audio", Formats: []string{"MP3", "WAV", "OGG", "FLAC", "AAC", "WMA"}},
	{Name: "Archive", Formats: []string{"ZIP", "RAR", "7Z", "TAR"}},
	{Name: "Spreadsheet", Formats: []string{"XLSX", "CSV", "ODS"}},
	{Name: "Presentation", Formats: []string{"PPTX", "ODP", "PPS"}},
	{Name: "CAD", Formats: []string{"DWG", "DXF", "STL"}},
}

// Formats returns the picker catalog in display order. The result is a copy.
func Formats() []Category {
	out := make([]Category, len(catalog))
	for i, c := range catalog {
		out[i] = Category{Name: c.Name, Formats: append([]string(nil), c.Formats...)}
	}
	return out
}

// NormalizeFormat lowercases f and reports whether the catalog offers it.
func NormalizeFormat(f string) (string, bool) {
	f = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(f), ".")))
	for _, c := range catalog {
		for _, known := range c.Formats {
			if strings.ToLower(known) == f {
				return f, true
			}
		}
	}
	return f, false
}
