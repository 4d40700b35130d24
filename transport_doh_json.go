// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// dohJSONResponse mirrors the Google/Cloudflare DNS-over-HTTPS JSON schema
// (https://developers.google.com/speed/public-dns/docs/doh/json). Only a
// subset of the schema's fields is declared; RD and Question are decoded
// but not used.
type dohJSONResponse struct {
	Status   int  `json:"Status"`
	TC       bool `json:"TC"`
	RD       bool `json:"RD"`
	RA       bool `json:"RA"`
	AD       bool `json:"AD"`
	CD       bool `json:"CD"`
	Question []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
	} `json:"Question"`
	Answer     []dohJSONRR `json:"Answer"`
	Authority  []dohJSONRR `json:"Authority"`
	Additional []dohJSONRR `json:"Additional"`
}

type dohJSONRR struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

// dohJSONTransport implements DNS over HTTPS using the Google/Cloudflare
// JSON schema: a GET request with name/type/cd/do query parameters.
type dohJSONTransport struct {
	proxy   ProxyDispatcher
	timeout time.Duration
}

func (t *dohJSONTransport) Exchange(ctx context.Context, ns NameServer, req *dns.Msg) (*dns.Msg, error) {
	if ns.DoHURL == nil {
		return nil, &TransportError{
			Protocol: ProtocolHTTPSJSON,
			Server:   ns.String(),
			Err:      fmt.Errorf("name server has no DoH URL configured"),
		}
	}
	if len(req.Question) != 1 {
		return nil, &TransportError{
			Protocol: ProtocolHTTPSJSON,
			Server:   ns.String(),
			Err:      fmt.Errorf("JSON DoH supports exactly one question per request"),
		}
	}

	if t.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	q := req.Question[0]

	u := *ns.DoHURL
	query := u.Query()
	query.Set("name", q.Name)
	query.Set("type", strconv.Itoa(int(q.Qtype)))
	query.Set("cd", strconv.FormatBool(req.CheckingDisabled))
	query.Set("do", "false")
	u.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSJSON, Server: ns.String(), Err: err}
	}
	httpReq.Header.Set("Accept", "application/dns-json")

	client := t.httpClient()

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSJSON, Server: ns.String(), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Protocol: ProtocolHTTPSJSON,
			Server:   ns.String(),
			Err:      fmt.Errorf("unexpected HTTP status %d", httpResp.StatusCode),
		}
	}

	var body dohJSONResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&body); err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSJSON, Server: ns.String(), Err: err}
	}

	reply, err := dohJSONToMsg(req, &body)
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSJSON, Server: ns.String(), Err: err}
	}

	return reply, nil
}

func (t *dohJSONTransport) httpClient() *http.Client {
	transport := &http.Transport{}
	if t.proxy != nil {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return t.proxy.CreateTunnel(ctx, remoteEndpointOrZero(addr), true, false)
		}
	}
	return &http.Client{Transport: transport, Timeout: t.timeout}
}

// dohJSONToMsg translates a Google/Cloudflare JSON response back into a
// *dns.Msg, so that the rest of the resolver never has to know which wire
// format a given server spoke.
func dohJSONToMsg(req *dns.Msg, body *dohJSONResponse) (*dns.Msg, error) {
	reply := new(dns.Msg)
	reply.SetReply(req)
	reply.Rcode = body.Status
	reply.Truncated = body.TC
	reply.RecursionAvailable = body.RA
	reply.AuthenticatedData = body.AD
	reply.CheckingDisabled = body.CD

	var err error
	if reply.Answer, err = dohJSONRRs(body.Answer); err != nil {
		return nil, err
	}
	if reply.Ns, err = dohJSONRRs(body.Authority); err != nil {
		return nil, err
	}
	if reply.Extra, err = dohJSONRRs(body.Additional); err != nil {
		return nil, err
	}

	return reply, nil
}

func dohJSONRRs(in []dohJSONRR) ([]dns.RR, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make([]dns.RR, 0, len(in))
	for _, rr := range in {
		typ, ok := dns.TypeToString[uint16(rr.Type)]
		if !ok {
			continue
		}

		text := fmt.Sprintf("%s %d IN %s %s", dns.Fqdn(rr.Name), rr.TTL, typ, formatJSONRData(uint16(rr.Type), rr.Data))

		parsed, err := dns.NewRR(text)
		if err != nil {
			return nil, fmt.Errorf("parsing JSON RR %q: %w", text, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

// formatJSONRData adjusts record types whose JSON "data" field isn't
// already valid RDATA-as-zone-text; only unquoted TXT data is rewritten,
// by quoting it. SOA in particular is returned by
// both Google and Cloudflare as a single space-joined string, which is
// already zone-file compatible, so most types pass through unchanged.
func formatJSONRData(rtype uint16, data string) string {
	switch rtype {
	case dns.TypeTXT:
		if !strings.HasPrefix(data, "\"") {
			return strconv.Quote(data)
		}
	}
	return data
}
