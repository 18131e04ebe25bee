package corebank

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// ErrMetadataUnavailable is returned when the core-banking system cannot
// be reached or rejects the enquiry. Printing is refused in that case; a
// checkbook must never be produced against unverified account data.
var ErrMetadataUnavailable = errors.New("core banking metadata unavailable")

// ErrAccountNotFound is returned when the core-banking system answers but
// knows no such account.
var ErrAccountNotFound = errors.New("account not found in core banking")

// AccountMetadata is the account snapshot the core-banking system reports
type AccountMetadata struct {
	AccountNumber     string `json:"accountNumber"`
	AccountHolderName string `json:"accountHolderName"`
	AccountType       int    `json:"accountType"`
	BranchCode        string `json:"branchCode"`
	Status            string `json:"status"`
}

// Client queries the bank's core system over its SOAP endpoint. Lookups
// are cached in Redis for a short window since account metadata changes
// rarely and the core system is the slowest dependency in the print path.
type Client struct {
	endpoint   string
	httpClient *http.Client
	redis      *redis.Client
	cacheTTL   time.Duration
}

func NewClient(redisClient *redis.Client) *Client {
	viper.SetDefault("corebank.endpoint", "http://localhost:8091/corebank/soap")
	viper.SetDefault("corebank.timeout", 10*time.Second)
	viper.SetDefault("corebank.cache_ttl", 15*time.Minute)

	return &Client{
		endpoint: viper.GetString("corebank.endpoint"),
		httpClient: &http.Client{
			Timeout: viper.GetDuration("corebank.timeout"),
		},
		redis:    redisClient,
		cacheTTL: viper.GetDuration("corebank.cache_ttl"),
	}
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SoapNS  string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Enquiry accountEnquiry `xml:"AccountEnquiry"`
}

type accountEnquiry struct {
	AccountNumber string `xml:"accountNumber"`
}

type soapResponseEnvelope struct {
	XMLName xml.Name         `xml:"Envelope"`
	Body    soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Response accountEnquiryResponse `xml:"AccountEnquiryResponse"`
	Fault    *soapFault             `xml:"Fault"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type accountEnquiryResponse struct {
	ResponseCode      string `xml:"responseCode"`
	AccountNumber     string `xml:"accountNumber"`
	AccountHolderName string `xml:"accountHolderName"`
	AccountType       int    `xml:"accountType"`
	BranchCode        string `xml:"branchCode"`
	Status            string `xml:"status"`
}

// GetAccountMetadata fetches the account snapshot for accountNumber,
// serving from cache when possible.
func (c *Client) GetAccountMetadata(ctx context.Context, accountNumber string) (*AccountMetadata, error) {
	if meta := c.fromCache(ctx, accountNumber); meta != nil {
		return meta, nil
	}

	meta, err := c.enquire(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	c.toCache(ctx, accountNumber, meta)
	return meta, nil
}

func (c *Client) enquire(ctx context.Context, accountNumber string) (*AccountMetadata, error) {
	envelope := soapEnvelope{
		SoapNS: "http://schemas.xmlsoap.org/soap/envelope/",
		Body: soapBody{
			Enquiry: accountEnquiry{AccountNumber: accountNumber},
		},
	}

	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to build enquiry envelope: %w", err)
	}

	body := append([]byte(xml.Header), payload...)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build enquiry request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "AccountEnquiry")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[COREBANK] Enquiry request failed for account %s: %v", accountNumber, err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1_048_576))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrMetadataUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[COREBANK] Enquiry returned status %d for account %s", resp.StatusCode, accountNumber)
		return nil, fmt.Errorf("%w: status %d", ErrMetadataUnavailable, resp.StatusCode)
	}

	var respEnvelope soapResponseEnvelope
	if err := xml.Unmarshal(data, &respEnvelope); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMetadataUnavailable, err)
	}

	if fault := respEnvelope.Body.Fault; fault != nil {
		log.Printf("[COREBANK] SOAP fault for account %s: %s %s", accountNumber, fault.Code, fault.String)
		if strings.Contains(strings.ToUpper(fault.String), "NOT FOUND") {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrMetadataUnavailable, fault.String)
	}

	result := respEnvelope.Body.Response
	if result.ResponseCode != "00" {
		if result.ResponseCode == "25" {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: response code %s", ErrMetadataUnavailable, result.ResponseCode)
	}

	return &AccountMetadata{
		AccountNumber:     result.AccountNumber,
		AccountHolderName: result.AccountHolderName,
		AccountType:       result.AccountType,
		BranchCode:        result.BranchCode,
		Status:            result.Status,
	}, nil
}

func (c *Client) fromCache(ctx context.Context, accountNumber string) *AccountMetadata {
	if c.redis == nil {
		return nil
	}

	data, err := c.redis.Get(ctx, cacheKey(accountNumber)).Bytes()
	if err != nil {
		return nil
	}

	var meta AccountMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

func (c *Client) toCache(ctx context.Context, accountNumber string, meta *AccountMetadata) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, cacheKey(accountNumber), string(data), c.cacheTTL).Err(); err != nil {
		log.Printf("[COREBANK] Failed to cache metadata for account %s: %v", accountNumber, err)
	}
}

func cacheKey(accountNumber string) string {
	return "corebank:account:" + accountNumber
}
