// Package azurite is a blocking client facade over an Azure Blob Storage
// emulator such as Azurite.
package azurite

import (
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/asad/azctl/internal/logging"
)

// Well-known development account of the storage emulator.
const (
	DevAccountName = "devstoreaccount1"
	DevAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// DefaultTimeout bounds each operation when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Credential identifies a storage account by shared key.
type Credential struct {
	AccountName string
	AccountKey  string
}

// DevelopmentCredential returns the emulator's fixed development account.
func DevelopmentCredential() Credential {
	return Credential{AccountName: DevAccountName, AccountKey: DevAccountKey}
}

// Options tunes a Storage. The zero value targets the development account.
type Options struct {
	// Credential defaults to DevelopmentCredential.
	Credential Credential

	// Timeout bounds every operation. Zero means DefaultTimeout, negative
	// means no bound.
	Timeout time.Duration

	// PageSize is sent as maxresults with every listing page request.
	PageSize int32

	// Delimiter switches blob listing to hierarchical mode.
	Delimiter string

	// TLS selects https for the service URL.
	TLS bool
}

// Storage is the synchronous facade. Each method blocks until the backend
// call sequence has completed.
type Storage struct {
	client    *azblob.Client
	bridge    *bridge
	endpoint  Endpoint
	account   string
	pageSize  int32
	delimiter string
	logger    logging.Logger
}

// New parses rawURL and builds the backend client. A malformed URL returns
// KindInvalidParameter before any backend traffic; a client pipeline that
// cannot be built returns KindRuntimeCreationFailed.
func New(rawURL string, opts Options, logger logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	endpoint, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	cred := opts.Credential
	if cred.AccountName == "" && cred.AccountKey == "" {
		cred = DevelopmentCredential()
	}
	scheme := "http"
	if opts.TLS {
		scheme = "https"
	}
	serviceURL := fmt.Sprintf("%s://%s/%s", scheme, endpoint, cred.AccountName)

	sharedKey, err := azblob.NewSharedKeyCredential(cred.AccountName, cred.AccountKey)
	if err != nil {
		return nil, &Error{Kind: KindRuntimeCreationFailed, Detail: err.Error(), Err: err}
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, sharedKey, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, &Error{Kind: KindRuntimeCreationFailed, Detail: err.Error(), Err: err}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger.Debug("storage facade created",
		logging.String("service_url", serviceURL),
		logging.String("account", cred.AccountName),
	)
	return &Storage{
		client:    client,
		bridge:    newBridge(timeout, logger),
		endpoint:  endpoint,
		account:   cred.AccountName,
		pageSize:  opts.PageSize,
		delimiter: opts.Delimiter,
		logger:    logger,
	}, nil
}

// Endpoint returns the parsed emulator address.
func (s *Storage) Endpoint() Endpoint {
	return s.endpoint
}

func (s *Storage) maxResults() *int32 {
	if s.pageSize <= 0 {
		return nil
	}
	n := s.pageSize
	return &n
}
