package lawdata

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"beopsuny/internal/config"
	"beopsuny/internal/domain"
	"beopsuny/internal/proxy"
)

// ErrNoOCCode indicates that the law.go.kr OC code has not been
// configured. Surfaced before any network call.
var ErrNoOCCode = errors.New("lawdata: oc_code is not configured (register at open.law.go.kr and set it in settings.yaml)")

// DRF search envelope. The root element name follows the requested target,
// so it is matched loosely.
type drfSearchResponse struct {
	XMLName  xml.Name
	TotalCnt int       `xml:"totalCnt"`
	Items    []drfExpc `xml:"expc"`
}

type drfExpc struct {
	Serial     string `xml:"법령해석례일련번호"`
	Title      string `xml:"안건명"`
	CaseNo     string `xml:"안건번호"`
	Inquirer   string `xml:"질의기관명"`
	Responder  string `xml:"회신기관명"`
	ReplyDate  string `xml:"회신일자"`
	DetailLink string `xml:"법령해석례상세링크"`
}

// SearchInterpretations queries the DRF open API for legal interpretation
// records matching query.
func SearchInterpretations(ctx context.Context, f Fetcher, query string, display int) ([]domain.Interpretation, error) {
	s := config.Get()
	oc := strings.TrimSpace(s.OCCode)
	if oc == "" {
		return nil, ErrNoOCCode
	}

	if display <= 0 {
		display = s.API.DefaultDisplay
	}
	if display <= 0 {
		display = 20
	}

	params := url.Values{}
	params.Set("OC", oc)
	params.Set("target", "expc")
	params.Set("type", "XML")
	params.Set("display", strconv.Itoa(display))
	if query != "" {
		params.Set("query", query)
	}

	endpoint := strings.TrimRight(s.API.BaseURL, "/") + "/lawSearch.do?" + params.Encode()

	body, err := f.Fetch(ctx, endpoint, proxy.FetchOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch interpretations: %w", err)
	}

	return parseInterpretations(body)
}

func parseInterpretations(body string) ([]domain.Interpretation, error) {
	var resp drfSearchResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("parse interpretation search: %w", err)
	}

	records := make([]domain.Interpretation, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, domain.Interpretation{
			Serial:     strings.TrimSpace(item.Serial),
			Title:      strings.TrimSpace(item.Title),
			CaseNo:     strings.TrimSpace(item.CaseNo),
			Inquirer:   strings.TrimSpace(item.Inquirer),
			Responder:  strings.TrimSpace(item.Responder),
			ReplyDate:  strings.TrimSpace(item.ReplyDate),
			DetailLink: strings.TrimSpace(item.DetailLink),
		})
	}

	return records, nil
}
