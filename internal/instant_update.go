package internal

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// InstantUpdateResult is the outcome of matching a chat message against the
// local edit rules. Quotation is nil unless Updated is true.
type InstantUpdateResult struct {
	Updated   bool
	Quotation *Quotation
}

const number = `(\d+(?:\.\d+)?)`

var (
	addWithDetailsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)add\s+service\s+(.+?)\s+(?:quantity|qty)\s+(\d+)\s+(?:and\s+)?(?:price|rate)\s+` + number),
		regexp.MustCompile(`(?i)add\s+(.+?)\s+(?:quantity|qty)\s+(\d+)\s+(?:and\s+)?(?:price|rate)\s+` + number),
		regexp.MustCompile(`(?i)add\s+(?:service\s+)?(.+?)\s+with\s+(?:quantity|qty)\s+(\d+)\s+(?:and\s+)?(?:price|rate)\s+` + number),
	}

	simpleAddPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^add\s+service\s+(.+)$`),
		regexp.MustCompile(`(?i)^add\s+(.+?)(?:\s+service)?$`),
	}

	renamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)change\s+(?:the\s+)?service\s+name\s+(.+?)\s+to\s+(.+)`),
		regexp.MustCompile(`(?i)change\s+(?:the\s+)?(.+?)\s+service\s+name\s+to\s+(.+)`),
		regexp.MustCompile(`(?i)change\s+(?:existing\s+)?service\s+(.+?)\s+to\s+(.+)`),
		regexp.MustCompile(`(?i)change\s+(?:the\s+)?(.+?)\s+to\s+(.+)`),
		regexp.MustCompile(`(?i)rename\s+(?:the\s+)?(.+?)\s+(?:service\s+)?(?:to|into)\s+(.+)`),
	}

	priceByAmountPattern = regexp.MustCompile(`(?i)change\s+(?:the\s+)?(?:price\s+)?amount\s+` + number + `\s+(?:into|to)\s+` + number)
	priceOfLastPattern   = regexp.MustCompile(`(?i)change\s+(?:price|rate)\s+(?:to|to\s+)?` + number)

	gstPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)change\s+(?:the\s+)?gst\s+percentage\s+` + number + `\s+(?:to|into)\s+` + number),
		regexp.MustCompile(`(?i)change\s+(?:the\s+)?gst\s+(?:percentage\s+)?(?:to|to\s+)?` + number),
	}

	quantityPattern = regexp.MustCompile(`(?i)change\s+quantity\s+(?:to|to\s+)?(\d+)`)

	removePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:remove|delete)\s+(.+?)\s+(?:quantity|qty)\s+\d+`),
		regexp.MustCompile(`(?i)(?:remove|delete)\s+(.+)`),
	}

	trailingServiceWord  = regexp.MustCompile(`(?i)\s+service\s*$`)
	trailingQuantityWord = regexp.MustCompile(`(?i)\s+(?:quantity|qty)\s*$`)
	trailingFieldClause  = regexp.MustCompile(`(?i)\s+(?:quantity|qty|price|rate).*$`)
	trailingWorkWord     = regexp.MustCompile(`(?i)\s+(?:works?|service)\s*$`)
	fieldKeyword         = regexp.MustCompile(`(?i)\b(?:quantity|qty|price|rate)\b`)
	editKeywordSubject   = regexp.MustCompile(`(?i)^(?:price|rate|gst|quantity|qty|amount)\b`)
)

// TryInstantUpdate recognizes simple edit commands in message and applies
// them to a copy of current. current is never modified; nil is treated as
// the empty quotation.
func TryInstantUpdate(message string, current *Quotation) InstantUpdateResult {
	q := EmptyQuotation()
	if current != nil {
		q = current.Clone()
		if q.Services == nil {
			q.Services = []Service{}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(message))

	updated := applyAddWithDetails(message, &q)
	if !updated {
		updated = applySimpleAdd(lower, &q)
	}
	updated = applyRename(lower, &q) || updated
	updated = applyPriceChange(lower, &q) || updated
	updated = applyGSTChange(lower, &q) || updated
	updated = applyQuantityChange(lower, &q) || updated
	updated = applyRemove(lower, &q) || updated

	if !updated {
		return InstantUpdateResult{}
	}
	recalculated := RecalculateTotals(q)
	return InstantUpdateResult{Updated: true, Quotation: &recalculated}
}

func applyAddWithDetails(message string, q *Quotation) bool {
	for _, p := range addWithDetailsPatterns {
		m := p.FindStringSubmatch(message)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[1])
		name = strings.TrimSpace(trailingServiceWord.ReplaceAllString(name, ""))
		name = strings.TrimSpace(trailingQuantityWord.ReplaceAllString(name, ""))
		qty, qErr := strconv.Atoi(m[2])
		price, pErr := strconv.ParseFloat(m[3], 64)
		if name == "" || qErr != nil || pErr != nil {
			return false
		}

		line := Service{
			ServiceName: name,
			Quantity:    float64(qty),
			UnitPrice:   price,
			Amount:      Round(float64(qty)*price, 2),
		}
		if i := indexByName(q.Services, name); i >= 0 {
			existing := q.Services[i]
			line.ServiceName = existing.ServiceName
			line.KeyFeatures = existing.KeyFeatures
			if line.KeyFeatures == nil {
				line.KeyFeatures = GenerateKeyFeatures(name)
			}
			q.Services[i] = line
		} else {
			line.KeyFeatures = GenerateKeyFeatures(name)
			q.Services = append(q.Services, line)
		}
		return true
	}
	return false
}

func applySimpleAdd(lower string, q *Quotation) bool {
	for _, p := range simpleAddPatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(trailingServiceWord.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if name == "" || fieldKeyword.MatchString(name) || indexByName(q.Services, name) >= 0 {
			return false
		}
		q.Services = append(q.Services, Service{
			ServiceName: name,
			Quantity:    1,
			KeyFeatures: GenerateKeyFeatures(name),
		})
		return true
	}
	return false
}

func applyRename(lower string, q *Quotation) bool {
	if len(q.Services) == 0 {
		return false
	}
	for _, p := range renamePatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		oldName := strings.TrimSpace(trailingServiceWord.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		newName := strings.TrimSpace(trailingServiceWord.ReplaceAllString(strings.TrimSpace(m[2]), ""))
		// "change price to 500" and friends are field edits, not renames.
		if oldName == "" || newName == "" || strings.EqualFold(oldName, newName) || editKeywordSubject.MatchString(oldName) {
			return false
		}

		i := indexByFuzzyName(q.Services, oldName)
		if i < 0 {
			return false
		}
		existing := q.Services[i]
		q.Services[i] = Service{
			ServiceName: newName,
			Quantity:    existing.Quantity,
			UnitPrice:   ResolvePrice(existing),
			Amount:      existing.Amount,
			KeyFeatures: GenerateKeyFeatures(newName),
		}
		return true
	}
	return false
}

func applyPriceChange(lower string, q *Quotation) bool {
	if len(q.Services) == 0 {
		return false
	}

	if m := priceByAmountPattern.FindStringSubmatch(lower); m != nil {
		oldPrice, _ := strconv.ParseFloat(m[1], 64)
		newPrice, _ := strconv.ParseFloat(m[2], 64)
		for i, s := range q.Services {
			if math.Abs(ResolvePrice(s)-oldPrice) < 0.01 {
				q.Services[i] = repriced(s, newPrice)
				return true
			}
		}
		return false
	}

	if m := priceOfLastPattern.FindStringSubmatch(lower); m != nil {
		newPrice, _ := strconv.ParseFloat(m[1], 64)
		last := len(q.Services) - 1
		q.Services[last] = repriced(q.Services[last], newPrice)
		return true
	}
	return false
}

func repriced(s Service, price float64) Service {
	return Service{
		ServiceName: s.ServiceName,
		Quantity:    s.Quantity,
		UnitPrice:   price,
		Price:       price,
		UnitRate:    price,
		Amount:      Round(s.Quantity*price, 2),
		KeyFeatures: s.KeyFeatures,
	}
}

func applyGSTChange(lower string, q *Quotation) bool {
	for _, p := range gstPatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		value := m[len(m)-1]
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			pct = 0
		}
		q.GSTPercentage = pct
		return true
	}
	return false
}

func applyQuantityChange(lower string, q *Quotation) bool {
	m := quantityPattern.FindStringSubmatch(lower)
	if m == nil || len(q.Services) == 0 {
		return false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}

	last := len(q.Services) - 1
	s := q.Services[last]
	price := ResolvePrice(s)
	q.Services[last] = Service{
		ServiceName: s.ServiceName,
		Quantity:    float64(qty),
		UnitPrice:   price,
		Amount:      Round(price*float64(qty), 2),
		KeyFeatures: s.KeyFeatures,
	}
	return true
}

func applyRemove(lower string, q *Quotation) bool {
	if len(q.Services) == 0 {
		return false
	}
	for _, p := range removePatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}

		target := strings.TrimSpace(m[1])
		target = strings.TrimSpace(trailingFieldClause.ReplaceAllString(target, ""))
		target = strings.TrimSpace(trailingWorkWord.ReplaceAllString(target, ""))
		if target == "" {
			return false
		}

		i := indexByFuzzyName(q.Services, target)
		if i < 0 {
			return false
		}
		q.Services = append(q.Services[:i], q.Services[i+1:]...)
		return true
	}
	return false
}

// indexByName finds a service by case-insensitive exact name
func indexByName(services []Service, name string) int {
	for i, s := range services {
		if strings.EqualFold(s.ServiceName, name) {
			return i
		}
	}
	return -1
}

// indexByFuzzyName finds the first service whose name equals, contains or
// is contained in name, ignoring case
func indexByFuzzyName(services []Service, name string) int {
	needle := strings.ToLower(name)
	for i, s := range services {
		hay := strings.ToLower(s.ServiceName)
		if hay == "" {
			continue
		}
		if hay == needle || strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return i
		}
	}
	return -1
}
