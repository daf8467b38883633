package courtlistener

import "strings"

// CourtListener filters on short slugs rather than reporter-style court
// abbreviations. Districts most common in chapter 11 filings.
var courtSlugs = map[string]string{
	"S.D.N.Y.":   "nysd",
	"D.N.J.":     "njd",
	"D. Del.":    "deb",
	"D.D.C.":     "dcd",
	"S.D. Tex.":  "txsd",
	"N.D. Tex.":  "txnd",
	"E.D. Tex.":  "txed",
	"M.D. Fla.":  "flmd",
	"S.D. Fla.":  "flsd",
	"N.D. Ill.":  "ilnd",
	"E.D. Va.":   "vaed",
	"W.D. Va.":   "vaw",
	"S.D. Ind.":  "insd",
	"N.D. Cal.":  "cand",
	"C.D. Cal.":  "cacd",
	"S.D. Cal.":  "casd",
	"D. Md.":     "mdd",
	"D. Mass.":   "mad",
	"D. Conn.":   "ctd",
	"W.D.N.Y.":   "nywb",
	"E.D.N.Y.":   "nyed",
	"D.N.M.":     "nmd",
	"D. Nev.":    "nvd",
	"D. Ariz.":   "azd",
	"N.D. Ga.":   "gand",
	"D. Minn.":   "mnd",
	"E.D. Mo.":   "moed",
	"D. Kan.":    "ksd",
	"D. Colo.":   "cod",
	"W.D. Wash.": "wawd",
}

// CourtSlug converts a court abbreviation like "S.D.N.Y." to the slug the
// API filters on. Returns "" for unknown courts so callers can omit the
// court filter entirely.
func CourtSlug(court string) string {
	return courtSlugs[strings.TrimSpace(court)]
}
