// Package models defines the domain types for Asterisk.
package models

// LocalDocumentID is used when the host has no stable document identity.
const LocalDocumentID = "local"

// UnnamedElement is the display name used for elements without a name.
const UnnamedElement = "Unnamed Layer"

// Scope namespaces all annotation storage: one document, one page.
type Scope struct {
	DocumentID string `json:"documentId"`
	PageID     string `json:"pageId"`
}

// NewScope builds a Scope, substituting LocalDocumentID for an empty document identity.
func NewScope(documentID, pageID string) Scope {
	if documentID == "" {
		documentID = LocalDocumentID
	}
	return Scope{DocumentID: documentID, PageID: pageID}
}

// Fields is the user-editable part of an annotation.
type Fields struct {
	SourceURL string   `json:"sourceUrl"`
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes"`
}

// Annotation is the committed note attached to one element.
type Annotation struct {
	SourceURL    string   `json:"sourceUrl"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	LastModified int64    `json:"lastModified"`
	DocumentID   string   `json:"documentId"`
	PageID       string   `json:"pageId"`
	PageName     string   `json:"pageName,omitempty"`
}

// Scope returns the scope denormalized into the record.
func (a Annotation) Scope() Scope {
	return Scope{DocumentID: a.DocumentID, PageID: a.PageID}
}

// Fields returns the editable fields of the annotation.
func (a Annotation) Fields() Fields {
	return Fields{SourceURL: a.SourceURL, Tags: a.Tags, Notes: a.Notes}
}

// Draft is an autosaved, uncommitted edit. It has the same shape as
// Annotation without the page name.
type Draft struct {
	SourceURL    string   `json:"sourceUrl"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	LastModified int64    `json:"lastModified"`
	DocumentID   string   `json:"documentId"`
	PageID       string   `json:"pageId"`
}

// Element is an addressable unit of the live document.
type Element struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	PageID string `json:"pageId"`
}

// DisplayName returns the element name or the unnamed fallback.
func (e Element) DisplayName() string {
	if e.Name == "" {
		return UnnamedElement
	}
	return e.Name
}

// TagCount is one row of the tag frequency table.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ElementSummary is one row of the annotated-element listing.
type ElementSummary struct {
	NodeID       string   `json:"nodeId"`
	NodeName     string   `json:"nodeName"`
	SourceURL    string   `json:"sourceUrl"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	LastModified *int64   `json:"lastModified"`
}
