package lifi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yourorg/xbridge-api/internal/model"
)

// flexID accepts chain ids encoded either as JSON numbers or strings
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
	LogoURI  string `json:"logoURI"`
	ChainID  flexID `json:"chainId"`
}

type wireToolDetails struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	LogoURI string `json:"logoURI"`
}

type wireGasCost struct {
	AmountUSD string `json:"amountUSD"`
}

type wireEstimate struct {
	FromAmount        string          `json:"fromAmount"`
	ToAmount          string          `json:"toAmount"`
	ExecutionDuration float64         `json:"executionDuration"`
	GasCosts          []wireGasCost   `json:"gasCosts"`
	FeeCosts          json.RawMessage `json:"feeCosts"`
}

type wireAction struct {
	FromChainID flexID     `json:"fromChainId"`
	ToChainID   flexID     `json:"toChainId"`
	FromToken   *wireToken `json:"fromToken"`
	ToToken     *wireToken `json:"toToken"`
	FromAmount  string     `json:"fromAmount"`
}

type wireTxRequest struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
}

type wireStep struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Tool               string          `json:"tool"`
	ToolDetails        wireToolDetails `json:"toolDetails"`
	Action             *wireAction     `json:"action"`
	Estimate           *wireEstimate   `json:"estimate"`
	IncludedSteps      []wireStep      `json:"includedSteps"`
	TransactionRequest *wireTxRequest  `json:"transactionRequest"`
}

type wireRoute struct {
	ID            string     `json:"id"`
	RouteID       string     `json:"routeId"`
	FromAmount    string     `json:"fromAmount"`
	ToAmount      string     `json:"toAmount"`
	ExecutionTime float64    `json:"executionTime"`
	GasCostUSD    string     `json:"gasCostUSD"`
	Steps         []wireStep `json:"steps"`
}

// actionResponse is a single executable step or route. It carries an
// action block and, for /route and /quote, the transaction request.
type actionResponse struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Tool               string          `json:"tool"`
	ToolDetails        wireToolDetails `json:"toolDetails"`
	FromChainID        flexID          `json:"fromChainId"`
	ToChainID          flexID          `json:"toChainId"`
	FromToken          *wireToken      `json:"fromToken"`
	ToToken            *wireToken      `json:"toToken"`
	FromAmount         string          `json:"fromAmount"`
	ToAmount           string          `json:"toAmount"`
	GasCostUSD         string          `json:"gasCostUSD"`
	Action             wireAction      `json:"action"`
	Estimate           *wireEstimate   `json:"estimate"`
	Steps              []wireStep      `json:"steps"`
	IncludedSteps      []wireStep      `json:"includedSteps"`
	TransactionRequest *wireTxRequest  `json:"transactionRequest"`
}

// routeListResponse is the summary shape: token pair plus candidate routes
type routeListResponse struct {
	ID          string      `json:"id"`
	FromChainID flexID      `json:"fromChainId"`
	ToChainID   flexID      `json:"toChainId"`
	FromToken   wireToken   `json:"fromToken"`
	ToToken     wireToken   `json:"toToken"`
	FromAmount  string      `json:"fromAmount"`
	ToAmount    string      `json:"toAmount"`
	Routes      []wireRoute `json:"routes"`
}

// decoded is the tagged union produced at the deserialization boundary.
// Exactly one of action or routeList is set.
type decoded struct {
	action    *actionResponse
	routeList *routeListResponse
}

// decodeResponse detects the variant by the presence of a non-null action
// field and parses into the matching strict structure.
func decodeResponse(raw []byte) (decoded, error) {
	var probe struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return decoded{}, fmt.Errorf("decoding routing response: %w", err)
	}

	if len(probe.Action) > 0 && !bytes.Equal(bytes.TrimSpace(probe.Action), []byte("null")) {
		var a actionResponse
		if err := json.Unmarshal(raw, &a); err != nil {
			return decoded{}, fmt.Errorf("decoding action response: %w", err)
		}
		return decoded{action: &a}, nil
	}

	var r routeListResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return decoded{}, fmt.Errorf("decoding route list response: %w", err)
	}
	return decoded{routeList: &r}, nil
}

// normalize maps either variant onto Quote
func normalize(d decoded) model.Quote {
	if d.action != nil {
		return normalizeAction(d.action)
	}
	return normalizeRouteList(d.routeList)
}

func normalizeAction(a *actionResponse) model.Quote {
	fromToken := firstToken(a.FromToken, a.Action.FromToken)
	toToken := firstToken(a.ToToken, a.Action.ToToken)

	fromAmount := firstNonEmpty(a.FromAmount, a.Action.FromAmount, estimateField(a.Estimate, true))
	toAmount := firstNonEmpty(a.ToAmount, estimateField(a.Estimate, false))

	steps := a.Steps
	if len(steps) == 0 {
		steps = a.IncludedSteps
	}
	summaries := summarizeSteps(steps)
	if len(summaries) == 0 && a.Tool != "" {
		summaries = []model.StepSummary{{
			Type:        a.Type,
			Tool:        a.Tool,
			ToolName:    a.ToolDetails.Name,
			ToolLogoURI: a.ToolDetails.LogoURI,
		}}
	}

	var execution int64
	if a.Estimate != nil && a.Estimate.ExecutionDuration > 0 {
		execution = int64(a.Estimate.ExecutionDuration)
	} else {
		execution = sumExecution(steps)
	}

	gasUSD := a.GasCostUSD
	if gasUSD == "" {
		gasUSD = sumGasUSD(a.Estimate, steps)
	}

	return model.Quote{
		ID:          a.ID,
		FromChainID: string(firstID(a.FromChainID, a.Action.FromChainID)),
		ToChainID:   string(firstID(a.ToChainID, a.Action.ToChainID)),
		FromToken:   tokenAmount(fromToken, fromAmount),
		ToToken:     tokenAmount(toToken, toAmount),
		Routes: []model.RouteSummary{{
			RouteID:              a.ID,
			FromAmount:           fromAmount,
			ToAmount:             toAmount,
			ExecutionTimeSeconds: execution,
			GasCostUSD:           gasUSD,
			Steps:                summaries,
		}},
	}
}

func normalizeRouteList(r *routeListResponse) model.Quote {
	return model.Quote{
		ID:          r.ID,
		FromChainID: string(r.FromChainID),
		ToChainID:   string(r.ToChainID),
		FromToken:   tokenAmount(&r.FromToken, r.FromAmount),
		ToToken:     tokenAmount(&r.ToToken, r.ToAmount),
		Routes:      summarizeRoutes(r.Routes),
	}
}

// summarizeRoutes keeps the upstream ranking order
func summarizeRoutes(routes []wireRoute) []model.RouteSummary {
	out := make([]model.RouteSummary, 0, len(routes))
	for _, rt := range routes {
		id := rt.RouteID
		if id == "" {
			id = rt.ID
		}
		execution := int64(rt.ExecutionTime)
		if execution == 0 {
			execution = sumExecution(rt.Steps)
		}
		gasUSD := rt.GasCostUSD
		if gasUSD == "" {
			gasUSD = sumGasUSD(nil, rt.Steps)
		}
		out = append(out, model.RouteSummary{
			RouteID:              id,
			FromAmount:           rt.FromAmount,
			ToAmount:             rt.ToAmount,
			ExecutionTimeSeconds: execution,
			GasCostUSD:           gasUSD,
			Steps:                summarizeSteps(rt.Steps),
		})
	}
	return out
}

func summarizeSteps(steps []wireStep) []model.StepSummary {
	out := make([]model.StepSummary, 0, len(steps))
	for _, s := range steps {
		out = append(out, model.StepSummary{
			Type:        s.Type,
			Tool:        s.Tool,
			ToolName:    s.ToolDetails.Name,
			ToolLogoURI: s.ToolDetails.LogoURI,
		})
	}
	return out
}

func sumExecution(steps []wireStep) int64 {
	var total float64
	for _, s := range steps {
		if s.Estimate != nil {
			total += s.Estimate.ExecutionDuration
		}
	}
	return int64(total)
}

func sumGasUSD(est *wireEstimate, steps []wireStep) string {
	total := decimal.Zero
	seen := false
	add := func(e *wireEstimate) {
		if e == nil {
			return
		}
		for _, g := range e.GasCosts {
			if d, err := decimal.NewFromString(g.AmountUSD); err == nil {
				total = total.Add(d)
				seen = true
			}
		}
	}
	add(est)
	if !seen {
		for _, s := range steps {
			add(s.Estimate)
		}
	}
	if !seen {
		return ""
	}
	return total.StringFixed(2)
}

func tokenAmount(t *wireToken, amount string) model.TokenAmount {
	if t == nil {
		return model.TokenAmount{Amount: amount}
	}
	return model.TokenAmount{
		Address:  t.Address,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		Amount:   amount,
	}
}

func estimateField(e *wireEstimate, from bool) string {
	if e == nil {
		return ""
	}
	if from {
		return e.FromAmount
	}
	return e.ToAmount
}

func firstToken(ts ...*wireToken) *wireToken {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstID(ids ...flexID) flexID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

type wireStatus struct {
	Status           string          `json:"status"`
	Substatus        string          `json:"substatus"`
	SubstatusMessage string          `json:"substatusMessage"`
	Sending          json.RawMessage `json:"sending"`
	Receiving        json.RawMessage `json:"receiving"`
	Timestamp        int64           `json:"timestamp"`
	Steps            []struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		Tool    string `json:"tool"`
		Message string `json:"message"`
	} `json:"steps"`
}

func (w wireStatus) toModel() model.StatusResult {
	steps := make([]model.StepStatus, 0, len(w.Steps))
	for _, s := range w.Steps {
		steps = append(steps, model.StepStatus{Type: s.Type, Status: s.Status, Tool: s.Tool, Message: s.Message})
	}
	return model.StatusResult{
		Status:           w.Status,
		Substatus:        w.Substatus,
		SubstatusMessage: w.SubstatusMessage,
		Sending:          nonNull(w.Sending),
		Receiving:        nonNull(w.Receiving),
		Timestamp:        w.Timestamp,
		Steps:            steps,
	}
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

type wireChain struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	LogoURI      string `json:"logoURI"`
	TokenListURL string `json:"tokenlistUrl"`
}

type wireChains struct {
	Chains []wireChain `json:"chains"`
}

type wireTokens struct {
	Tokens map[string][]wireToken `json:"tokens"`
}

func decodeJSON(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding routing response: %w", err)
	}
	return nil
}
