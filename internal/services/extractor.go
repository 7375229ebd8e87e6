package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/utils"
)

// UnknownMarketName is stored when every merchant-name strategy fails.
// A note without a merchant name is still worth keeping as long as it has
// line items.
const UnknownMarketName = "Estabelecimento não identificado"

// DefaultCategory is assigned to every item; the consultation page carries
// no category signal today.
const DefaultCategory = "Uncategorized"

const defaultUnit = "UN"

// fieldStrategy is one independent extraction attempt for a logical field.
// Strategies are tried in order and the first non-empty result wins, which
// lets new markup variants be added without touching existing ones.
type fieldStrategy func(doc *goquery.Document) string

var (
	// labelElements are the element types scanned when locating a label
	// text node such as "CNPJ:" or "Emissão:"
	labelElements = "div, span, td, p, li, label, strong, b"

	cnpjPattern    = regexp.MustCompile(`CNPJ:\s*([\d./-]+)`)
	digitsPattern  = regexp.MustCompile(`\d+`)
	unitPattern    = regexp.MustCompile(`UN:\s*([A-Za-zÀ-ü]+)`)
	datePattern    = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	decimalPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d+|\d+[.,]?\d*`)

	// date+time shapes seen across terminal software versions; a trailing
	// dash or timezone after the time is ignored by the captures
	dateTimePatterns = []struct {
		re     *regexp.Regexp
		layout string
	}{
		{regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2}:\d{2})`), "02/01/2006 15:04:05"},
		{regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2})`), "02/01/2006 15:04"},
	}

	// companyTokenPattern recognizes Brazilian company-suffix tokens.
	// Tokens are matched uppercase only; "ME" and "SA" are too ambiguous
	// case-insensitively.
	companyTokenPattern = regexp.MustCompile(`\b(LTDA|EIRELI|EPP|S/A|S\.A\.?|SA|ME|COMERCIO|COMÉRCIO)\b`)

	// whole-document merchant-name shapes, strict to loose
	companyNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`([A-ZÀ-Ü][A-ZÀ-Ü0-9.&\- ]{8,90}\s(?:LTDA|EIRELI|S/A|S\.A\.?)\b)`),
		regexp.MustCompile(`([A-ZÀ-Ü][A-ZÀ-Ü0-9.&\- ]{4,90}\s(?:LTDA|EIRELI|EPP|S/A|SA|ME)\b)`),
		regexp.MustCompile(`([A-ZÀ-Ü][A-ZÀ-Ü0-9.&\- ]{2,60}\bCOM[EÉ]RCIO[A-ZÀ-Ü0-9.&\- ]{0,40})`),
	}
)

// ExtractorService extracts note data from consultation page HTML. The
// upstream markup is unversioned and varies across terminal software, so
// every field is resolved by a cascade of independent strategies.
type ExtractorService struct {
	logger *logrus.Logger
}

// NewExtractorService creates a new extractor service
func NewExtractorService(logger *logrus.Logger) *ExtractorService {
	return &ExtractorService{logger: logger}
}

// Extract parses the page and assembles the note. It fails fast when the
// authority's own error marker is present, and fails terminally only when no
// line items can be found; every other missing field degrades to a default.
func (e *ExtractorService) Extract(html, accessKey string) (*models.ExtractedNote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewNoteError(KindUnusableDocument, "failed to parse HTML", err)
	}

	// the authority renders its rejection into div#erro
	if msg := strings.TrimSpace(doc.Find("div#erro").Text()); msg != "" {
		e.logger.WithField("message", msg).Warn("Authority rejected the access key")
		return nil, NewNoteError(KindNoteNotFound, "note not found or invalid", nil)
	}

	note := &models.ExtractedNote{}

	note.MarketName = firstNonEmpty(doc,
		e.marketNameByHeader,
		e.marketNameBySuffixToken,
		e.marketNameFromTitle,
		e.marketNameFromHeadings,
		e.marketNameFromEmphasis,
	)
	if note.MarketName == "" {
		e.logger.Warn("No merchant name found, using placeholder")
		note.MarketName = UnknownMarketName
	}

	note.MarketCNPJ = e.extractCNPJ(doc)
	note.MarketAddress = e.extractAddress(doc)
	note.EmissionDate = e.extractEmissionDate(doc)
	note.Products = e.extractProducts(doc)

	if len(note.Products) == 0 {
		return nil, NewNoteError(KindUnusableDocument,
			"no products found on consultation page", nil)
	}

	note.TotalValue = e.extractTotalValue(doc, note.Products)
	note.TotalTaxes = e.extractTotalTaxes(doc)
	note.AccessKey = e.extractAccessKey(doc, accessKey)

	e.logger.WithFields(logrus.Fields{
		"market":   note.MarketName,
		"products": len(note.Products),
		"total":    note.TotalValue,
	}).Info("Note extraction completed")

	return note, nil
}

// firstNonEmpty applies the strategies in order and keeps the first result
func firstNonEmpty(doc *goquery.Document, strategies ...fieldStrategy) string {
	for _, strategy := range strategies {
		if v := strings.TrimSpace(strategy(doc)); v != "" {
			return v
		}
	}
	return ""
}

// findLabelElement returns the innermost element whose text contains the
// label. Ancestors also contain the label through their children, so the
// shortest matching text wins.
func findLabelElement(doc *goquery.Document, label string) *goquery.Selection {
	var found *goquery.Selection
	shortest := -1
	doc.Find(labelElements).Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if !strings.Contains(text, label) {
			return
		}
		if shortest == -1 || len(text) < shortest {
			shortest = len(text)
			found = s
		}
	})
	return found
}

// parseFirstDecimal extracts the first numeric token from text and converts
// it, normalizing comma decimal separators
func parseFirstDecimal(text string) (float64, bool) {
	m := decimalPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := utils.ParseDecimal(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// merchant name (a): known header element
func (e *ExtractorService) marketNameByHeader(doc *goquery.Document) string {
	return doc.Find("div.txtTopo").First().Text()
}

// merchant name (b): whole-document company-suffix match, strict to loose
func (e *ExtractorService) marketNameBySuffixToken(doc *goquery.Document) string {
	text := collapseSpaces(doc.Text())
	for _, re := range companyNamePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// merchant name (c): page title
func (e *ExtractorService) marketNameFromTitle(doc *goquery.Document) string {
	title := collapseSpaces(doc.Find("title").Text())
	if companyTokenPattern.MatchString(title) {
		return title
	}
	return ""
}

// merchant name (d): heading containing a company-suffix token
func (e *ExtractorService) marketNameFromHeadings(doc *goquery.Document) string {
	var name string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseSpaces(s.Text())
		if companyTokenPattern.MatchString(text) {
			name = text
			return false
		}
		return true
	})
	return name
}

// merchant name (e): emphasis element containing a suffix token, with a
// length window to skip legal boilerplate
func (e *ExtractorService) marketNameFromEmphasis(doc *goquery.Document) string {
	var name string
	doc.Find("b, strong, em").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseSpaces(s.Text())
		if len(text) >= 10 && len(text) < 100 && companyTokenPattern.MatchString(text) {
			name = text
			return false
		}
		return true
	})
	return name
}

func (e *ExtractorService) extractCNPJ(doc *goquery.Document) string {
	label := findLabelElement(doc, "CNPJ:")
	if label == nil {
		return ""
	}
	text := label.Text()
	if parent := label.Parent(); parent.Length() > 0 {
		text = parent.Text()
	}
	if m := cnpjPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// extractAddress joins the page's plain-text blocks, skipping the CNPJ line
// and fragments too short to be address parts
func (e *ExtractorService) extractAddress(doc *goquery.Document) string {
	var parts []string
	doc.Find("div.text").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpaces(s.Text())
		if strings.Contains(text, "CNPJ:") || len(text) <= 10 {
			return
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, ", ")
}

func (e *ExtractorService) extractEmissionDate(doc *goquery.Document) time.Time {
	// (a) date+time following the emission label
	if label := findLabelElement(doc, "Emissão:"); label != nil {
		text := label.Text()
		if parent := label.Parent(); parent.Length() > 0 {
			text = parent.Text()
		}
		if t, ok := parseDateTime(text); ok {
			return t
		}
	}

	// (b) date+time anywhere in the document
	if t, ok := parseDateTime(doc.Text()); ok {
		return t
	}

	// (c) date near the note-number label
	if label := findLabelElement(doc, "Número:"); label != nil {
		text := label.Text()
		if parent := label.Parent(); parent.Length() > 0 {
			text = parent.Text()
		}
		if t, ok := parseDateOnly(text); ok {
			return t
		}
	}

	// (d) any element carrying a date-shaped text
	var fallback time.Time
	var ok bool
	doc.Find(labelElements).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, parsed := parseDateOnly(s.Text()); parsed {
			fallback, ok = t, true
			return false
		}
		return true
	})
	if ok {
		return fallback
	}

	e.logger.Warn("Could not parse emission date, using ingestion time")
	return time.Now().UTC()
}

func parseDateTime(text string) (time.Time, bool) {
	for _, p := range dateTimePatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			if t, err := time.Parse(p.layout, m[1]+" "+m[2]); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseDateOnly(text string) (time.Time, bool) {
	m := datePattern.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("02/01/2006", m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// extractProducts walks the results table. Rows are identified by an id
// containing "Item"; a row without a product name is discarded, every other
// missing column gets a documented default.
func (e *ExtractorService) extractProducts(doc *goquery.Document) []models.ExtractedProduct {
	table := doc.Find("table#tabResult")
	if table.Length() == 0 {
		table = doc.Find("table[data-filter]")
	}
	if table.Length() == 0 {
		return nil
	}

	var products []models.ExtractedProduct
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		id, _ := row.Attr("id")
		if !strings.Contains(id, "Item") {
			return
		}

		name := collapseSpaces(row.Find("span.txtTit").First().Text())
		if name == "" {
			return
		}

		product := models.ExtractedProduct{
			Name:     name,
			Quantity: 1.0,
			Unit:     defaultUnit,
			Category: DefaultCategory,
		}

		if cod := row.Find("span.RCod").Text(); cod != "" {
			product.Barcode = digitsPattern.FindString(cod)
		}
		if qtd, ok := parseFirstDecimal(row.Find("span.Rqtd").Text()); ok {
			product.Quantity = qtd
		}
		if m := unitPattern.FindStringSubmatch(row.Find("span.RUN").Text()); m != nil {
			product.Unit = m[1]
		}
		if price, ok := parseFirstDecimal(row.Find("span.RvlUnit").Text()); ok {
			product.UnitPrice = price
		}

		product.TotalPrice = product.UnitPrice * product.Quantity
		if total, ok := parseFirstDecimal(row.Find("span.valor").First().Text()); ok {
			product.TotalPrice = total
		}

		products = append(products, product)
	})

	return products
}

// extractTotalValue reads the "Valor a pagar" amount, falling back to the
// sum of the extracted item totals
func (e *ExtractorService) extractTotalValue(doc *goquery.Document, products []models.ExtractedProduct) float64 {
	if label := findLabelElement(doc, "Valor a pagar"); label != nil {
		scope := label.Parent()
		if scope.Length() == 0 {
			scope = label
		}
		value := scope.Find("span.totalNumb, span.txtMax").First()
		if v, ok := parseFirstDecimal(value.Text()); ok {
			return v
		}
	}

	var sum float64
	for _, p := range products {
		sum += p.TotalPrice
	}
	return sum
}

// extractTotalTaxes reads the "Tributos Totais" amount; the field is
// optional on the page and nil is never an error
func (e *ExtractorService) extractTotalTaxes(doc *goquery.Document) *float64 {
	label := findLabelElement(doc, "Tributos Totais")
	if label == nil {
		return nil
	}
	scope := label.Parent()
	if scope.Length() == 0 {
		scope = label
	}
	if v, ok := parseFirstDecimal(scope.Find("span.totalNumb").First().Text()); ok {
		return &v
	}
	return nil
}

// extractAccessKey confirms the access key printed on the page; when absent
// or malformed the already-resolved key stands
func (e *ExtractorService) extractAccessKey(doc *goquery.Document, resolvedKey string) string {
	if label := findLabelElement(doc, "Chave de acesso"); label != nil {
		scope := label.Parent()
		if scope.Length() == 0 {
			scope = label
		}
		key := utils.CleanDigits(scope.Find("span.chave").First().Text())
		if len(key) == 44 {
			return key
		}
	}
	return resolvedKey
}
