package lawdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"beopsuny/internal/config"
	"beopsuny/internal/domain"
	"beopsuny/internal/proxy"
)

// ErrNoAssemblyKey indicates that the open.assembly.go.kr API key has not
// been configured. Surfaced before any network call.
var ErrNoAssemblyKey = errors.New("lawdata: assembly_api_key is not configured (register at open.assembly.go.kr and set it in settings.yaml)")

// billService is the open-data service id for 국회의원 발의법률안.
const billService = "nzmimeepazxkubdpn"

const assemblyResultOK = "INFO-000"

// The assembly API nests rows inside a two-element array keyed by the
// service id: head metadata first, rows second.
type assemblyEnvelope map[string][]assemblyBlock

type assemblyBlock struct {
	Head []assemblyHead `json:"head"`
	Rows []assemblyRow  `json:"row"`
}

type assemblyHead struct {
	Result *struct {
		Code    string `json:"CODE"`
		Message string `json:"MESSAGE"`
	} `json:"RESULT"`
}

type assemblyRow struct {
	BillNo      string `json:"BILL_NO"`
	BillName    string `json:"BILL_NAME"`
	Proposer    string `json:"PROPOSER"`
	Committee   string `json:"COMMITTEE"`
	ProposeDate string `json:"PROPOSE_DT"`
	DetailLink  string `json:"DETAIL_LINK"`
}

// SearchBills queries legislative proposals, optionally filtered by bill
// name.
func SearchBills(ctx context.Context, f Fetcher, billName string, pageSize int) ([]domain.Bill, error) {
	s := config.Get()
	key := strings.TrimSpace(s.AssemblyAPIKey)
	if key == "" {
		return nil, ErrNoAssemblyKey
	}

	if pageSize <= 0 {
		pageSize = s.API.DefaultDisplay
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	params := url.Values{}
	params.Set("KEY", key)
	params.Set("Type", "json")
	params.Set("pIndex", "1")
	params.Set("pSize", strconv.Itoa(pageSize))
	if billName != "" {
		params.Set("BILL_NAME", billName)
	}

	base := strings.TrimRight(s.Assembly.BaseURL, "/")
	if base == "" {
		base = "https://open.assembly.go.kr/portal/openapi"
	}
	endpoint := base + "/" + billService + "?" + params.Encode()

	body, err := f.Fetch(ctx, endpoint, proxy.FetchOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch bills: %w", err)
	}

	return parseBills(body)
}

func parseBills(body string) ([]domain.Bill, error) {
	var envelope assemblyEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("parse bill search: %w", err)
	}

	blocks, ok := envelope[billService]
	if !ok {
		// An error response carries RESULT at the top level instead of the
		// service envelope.
		var failure struct {
			Result struct {
				Code    string `json:"CODE"`
				Message string `json:"MESSAGE"`
			} `json:"RESULT"`
		}
		if err := json.Unmarshal([]byte(body), &failure); err == nil && failure.Result.Code != "" {
			return nil, fmt.Errorf("bill search rejected: %s (%s)", failure.Result.Message, failure.Result.Code)
		}
		return nil, errors.New("bill search: unrecognized response shape")
	}

	bills := make([]domain.Bill, 0)
	for _, block := range blocks {
		for _, head := range block.Head {
			if head.Result != nil && head.Result.Code != assemblyResultOK {
				return nil, fmt.Errorf("bill search rejected: %s (%s)", head.Result.Message, head.Result.Code)
			}
		}
		for _, row := range block.Rows {
			bills = append(bills, domain.Bill{
				BillNo:      strings.TrimSpace(row.BillNo),
				Name:        strings.TrimSpace(row.BillName),
				Proposer:    strings.TrimSpace(row.Proposer),
				Committee:   strings.TrimSpace(row.Committee),
				ProposeDate: strings.TrimSpace(row.ProposeDate),
				Link:        strings.TrimSpace(row.DetailLink),
			})
		}
	}

	return bills, nil
}
