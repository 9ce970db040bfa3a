package internal

import "strings"

// MergeServerQuotation reconciles an optimistic local quotation with the
// quotation the backend computed for the same message.
//
// Line items missing locally are appended from the server. A line item
// present on both sides takes the server's version only when the server
// has a positive quantity and a positive resolved price; otherwise the
// local guess is kept. Totals come from the server unless the server value
// is zero.
func MergeServerQuotation(local, server Quotation) Quotation {
	merged := local.Clone()
	merged.Services = CleanInvalidServices(merged.Services)
	serverServices := CleanInvalidServices(server.Services)

	index := make(map[string]int, len(merged.Services))
	for i, s := range merged.Services {
		key := strings.ToLower(s.ServiceName)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	for _, remote := range serverServices {
		key := strings.ToLower(remote.ServiceName)
		i, ok := index[key]
		if !ok {
			merged.Services = append(merged.Services, remote.clone())
			index[key] = len(merged.Services) - 1
			continue
		}
		if serverWins(remote) {
			merged.Services[i] = remote.clone()
		}
	}

	merged.Subtotal = firstNonZero(server.Subtotal, merged.Subtotal)
	merged.GSTPercentage = firstNonZero(server.GSTPercentage, merged.GSTPercentage)
	merged.GSTAmount = firstNonZero(server.GSTAmount, merged.GSTAmount)
	merged.GrandTotal = firstNonZero(server.GrandTotal, merged.GrandTotal)
	return merged
}

// serverWins decides a same-name conflict. A server entry without real
// numbers never blanks out the local one.
func serverWins(remote Service) bool {
	return remote.Quantity > 0 && ResolvePrice(remote) > 0
}
