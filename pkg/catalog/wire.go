package catalog

// Wire wrappers for the JSON documents served by catalog sources.

// ProviderList is the providers.json document: {"data": ["a.com", ...]}.
type ProviderList struct {
	Data []string `json:"data"`
}

// ServiceList is the {provider}/services.json document.
type ServiceList struct {
	Data []string `json:"data"`
}

// ProviderAPIs is the {provider}.json document: {"apis": {id: API}}.
type ProviderAPIs struct {
	APIs map[string]API `json:"apis"`
}

// APIList is the list.json document: identifier -> API.
type APIList map[string]API

// PagedAPIList is the envelope of the secondary catalog's paged listing
// endpoint (list.json?page=N&limit=L). Sources that do not support
// pagination serve the plain APIList document instead.
type PagedAPIList struct {
	Results []PagedAPIEntry `json:"results"`
	Total   int             `json:"total"`
}

// PagedAPIEntry is one row of a paged listing response.
type PagedAPIEntry struct {
	ID  string `json:"id"`
	API API    `json:"api"`
}
