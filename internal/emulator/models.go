package emulator

import (
	"encoding/xml"
	"time"
)

// ContainerInfo describes a container.
type ContainerInfo struct {
	// Name is the unique name of the container within an account.
	Name string

	// ETag changes whenever the container is recreated.
	ETag string

	// LastModified is when the container was created.
	LastModified time.Time
}

// BlobInfo is the metadata of a blob, without its content.
type BlobInfo struct {
	Name         string
	ContentType  string
	ETag         string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// Blob is a blob together with its content.
type Blob struct {
	BlobInfo

	// Content is the actual blob data.
	Content []byte
}

// ListOptions narrows and pages a listing.
type ListOptions struct {
	Prefix string

	// Delimiter collapses names sharing a prefix up to the delimiter into a
	// single prefix entry. Only blob listings honour it.
	Delimiter string

	// Marker is the NextMarker of the previous page.
	Marker string

	// MaxResults caps the page size. Zero means DefaultMaxResults.
	MaxResults int
}

// DefaultMaxResults is the page size used when the client sends none.
const DefaultMaxResults = 5000

// ContainerPage is one page of a container listing.
type ContainerPage struct {
	Containers []ContainerInfo
	NextMarker string
}

// BlobPage is one page of a blob listing. Blobs and Prefixes are each in
// name order.
type BlobPage struct {
	Blobs      []BlobInfo
	Prefixes   []string
	NextMarker string
}

// Wire format of the Blob service REST API.

type containerEnumerationResults struct {
	XMLName         xml.Name       `xml:"EnumerationResults"`
	ServiceEndpoint string         `xml:"ServiceEndpoint,attr"`
	Prefix          string         `xml:"Prefix,omitempty"`
	Marker          string         `xml:"Marker,omitempty"`
	MaxResults      int            `xml:"MaxResults,omitempty"`
	Containers      []containerXML `xml:"Containers>Container"`
	NextMarker      string         `xml:"NextMarker"`
}

type containerXML struct {
	Name       string                 `xml:"Name"`
	Properties containerPropertiesXML `xml:"Properties"`
}

type containerPropertiesXML struct {
	LastModified string `xml:"Last-Modified"`
	ETag         string `xml:"Etag"`
}

type blobEnumerationResults struct {
	XMLName         xml.Name        `xml:"EnumerationResults"`
	ServiceEndpoint string          `xml:"ServiceEndpoint,attr"`
	ContainerName   string          `xml:"ContainerName,attr"`
	Prefix          string          `xml:"Prefix,omitempty"`
	Marker          string          `xml:"Marker,omitempty"`
	MaxResults      int             `xml:"MaxResults,omitempty"`
	Delimiter       string          `xml:"Delimiter,omitempty"`
	Blobs           blobsSegmentXML `xml:"Blobs"`
	NextMarker      string          `xml:"NextMarker"`
}

type blobsSegmentXML struct {
	Blobs    []blobXML       `xml:"Blob"`
	Prefixes []blobPrefixXML `xml:"BlobPrefix"`
}

type blobXML struct {
	Name       string            `xml:"Name"`
	Properties blobPropertiesXML `xml:"Properties"`
}

type blobPropertiesXML struct {
	LastModified  string `xml:"Last-Modified"`
	ETag          string `xml:"Etag"`
	ContentLength int64  `xml:"Content-Length"`
	ContentType   string `xml:"Content-Type"`
	BlobType      string `xml:"BlobType"`
}

type blobPrefixXML struct {
	Name string `xml:"Name"`
}

type errorXML struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}
