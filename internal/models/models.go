// Package models defines the XML documents of a 3MF package: the model
// document, OPC relationships and OPC content types.
//
// Attributes that carry numbers are kept as strings. Parsing them is the
// resource graph builder's job, which needs to decide per attribute whether a
// malformed value zeroes a cell or drops a record.
package models

import "encoding/xml"

// Conventional part locations in the archive.
const (
	ModelLocation        = "3D/3dmodel.model"
	ContentTypesLocation = "[Content_Types].xml"
	RelsFolder           = "_rels"
)

// Relationship types.
const (
	ModelRel        = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
	ThumbnailRel    = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/thumbnail"
	MustPreserveRel = "http://schemas.openxmlformats.org/package/2006/relationships/mustpreserve"
	PrintTicketRel  = "http://schemas.microsoft.com/3dmanufacturing/2013/01/printticket"
)

// MIME types of parts in the archive.
const (
	RelsMimeType        = "application/vnd.openxmlformats-package.relationships+xml"
	ModelMimeType       = "application/vnd.ms-package.3dmanufacturing-3dmodel+xml"
	PrintTicketMimeType = "application/vnd.ms-printing.printticket+xml"
)

// XML namespaces.
const (
	ModelNamespace        = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	ContentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"
	RelsNamespace         = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// Model is the root of a 3dmodel.model document.
type Model struct {
	XMLName            xml.Name   `xml:"model"`
	Xmlns              string     `xml:"xmlns,attr"`
	Unit               string     `xml:"unit,attr,omitempty"`
	Lang               string     `xml:"xml:lang,attr,omitempty"`
	RequiredExtensions string     `xml:"requiredextensions,attr,omitempty"`
	Metadata           []Metadata `xml:"metadata"`
	Resources          Resources  `xml:"resources"`
	Build              Build      `xml:"build"`
}

// Metadata is a <metadata> entry on the model root or in a metadata group.
type Metadata struct {
	Name     string `xml:"name,attr"`
	Preserve string `xml:"preserve,attr,omitempty"`
	Type     string `xml:"type,attr,omitempty"`
	Value    string `xml:",chardata"`
}

// MetadataGroup wraps metadata entries attached to objects and build items.
type MetadataGroup struct {
	Metadata []Metadata `xml:"metadata"`
}

type Resources struct {
	BaseMaterials []BaseMaterials `xml:"basematerials"`
	Objects       []Object        `xml:"object"`
}

// BaseMaterials is a material group resource.
type BaseMaterials struct {
	ID    string `xml:"id,attr"`
	Bases []Base `xml:"base"`
}

// Base is a single material within a group. Its position in the group is its
// material index.
type Base struct {
	Name         string `xml:"name,attr,omitempty"`
	DisplayColor string `xml:"displaycolor,attr,omitempty"`
}

// Object is an object resource: a mesh, a list of components, or both split
// across two resources by the writer.
type Object struct {
	ID             string          `xml:"id,attr"`
	Name           string          `xml:"name,attr,omitempty"`
	Type           string          `xml:"type,attr,omitempty"`
	PID            string          `xml:"pid,attr,omitempty"`
	PIndex         string          `xml:"pindex,attr,omitempty"`
	PartNumber     string          `xml:"partnumber,attr,omitempty"`
	MetadataGroups []MetadataGroup `xml:"metadatagroup"`
	Mesh           *Mesh           `xml:"mesh"`
	Components     *Components     `xml:"components"`
}

type Mesh struct {
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

type Vertices struct {
	Vertex []Vertex `xml:"vertex"`
}

type Vertex struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

type Triangles struct {
	Triangle []Triangle `xml:"triangle"`
}

type Triangle struct {
	V1  string `xml:"v1,attr"`
	V2  string `xml:"v2,attr"`
	V3  string `xml:"v3,attr"`
	PID string `xml:"pid,attr,omitempty"`
	P1  string `xml:"p1,attr,omitempty"`
}

type Components struct {
	Component []Component `xml:"component"`
}

// Component references another object resource by ID, with an optional
// transform relative to the referencing object.
type Component struct {
	ObjectID  string `xml:"objectid,attr"`
	Transform string `xml:"transform,attr,omitempty"`
}

type Build struct {
	Items []Item `xml:"item"`
}

// Item places an object resource into the build.
type Item struct {
	ObjectID       string          `xml:"objectid,attr"`
	Transform      string          `xml:"transform,attr,omitempty"`
	PartNumber     string          `xml:"partnumber,attr,omitempty"`
	MetadataGroups []MetadataGroup `xml:"metadatagroup"`
}

// Relationships is the root of an OPC .rels document.
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Xmlns        string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

type Relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
	Type   string `xml:"Type,attr"`
}

// Types is the root of the [Content_Types].xml document.
type Types struct {
	XMLName  xml.Name   `xml:"Types"`
	Xmlns    string     `xml:"xmlns,attr"`
	Default  []Default  `xml:"Default"`
	Override []Override `xml:"Override"`
}

// Default maps a file extension to a MIME type.
type Default struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Override maps an exact part path to a MIME type, taking priority over any
// Default rule.
type Override struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}
