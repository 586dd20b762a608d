package davclient

import "encoding/xml"

// Multistatus is the subset of a PROPFIND answer the connector reads.
type Multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []Response `xml:"DAV: response"`
}

type Response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []Propstat `xml:"DAV: propstat"`
}

type Propstat struct {
	Prop   Prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type Prop struct {
	ResourceType *ResourceTypeProp `xml:"DAV: resourcetype"`
}

type ResourceTypeProp struct {
	Collection *struct{} `xml:"DAV: collection"`
}

const propfindResourceTypeBody = "<?xml version=\"1.0\"?>\r\n" +
	"<a:propfind xmlns:a=\"DAV:\">\r\n" +
	"<a:prop><a:resourcetype/></a:prop>\r\n" +
	"</a:propfind>"

const lockInfoTemplate = `<?xml version="1.0" encoding="utf-8"?>
<D:lockinfo xmlns:D="DAV:">
<D:lockscope><D:exclusive/></D:lockscope>
<D:locktype><D:write/></D:locktype>
<D:owner><D:href>%s</D:href></D:owner>
</D:lockinfo>`
