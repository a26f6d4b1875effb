package metrics

import "sync"

// MaxDomainLabels bounds the distinct domain label values on
// sitetime_credited_seconds_total.
const MaxDomainLabels = 100

// OtherDomain is the label shared by domains seen after the limit is reached.
const OtherDomain = "other"

// domainLabels hands out label values first come, first served.
type domainLabels struct {
	mu    sync.Mutex
	max   int
	known map[string]struct{}
}

func newDomainLabels(max int) *domainLabels {
	return &domainLabels{max: max, known: make(map[string]struct{})}
}

func (d *domainLabels) label(domain string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.known[domain]; ok {
		return domain
	}
	if len(d.known) >= d.max {
		return OtherDomain
	}
	d.known[domain] = struct{}{}
	return domain
}

var creditedDomains = newDomainLabels(MaxDomainLabels)

// CreditDomain adds seconds to sitetime_credited_seconds_total for domain.
func CreditDomain(domain string, seconds int64) {
	CreditedSeconds.WithLabelValues(creditedDomains.label(domain)).Add(float64(seconds))
}
