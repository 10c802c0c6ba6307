package lti

import "encoding/xml"

const outcomeNamespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"

type replaceResultEnvelope struct {
	XMLName   xml.Name `xml:"imsx_POXEnvelopeRequest"`
	Namespace string   `xml:"xmlns,attr"`
	Header    struct {
		Info struct {
			Version           string `xml:"imsx_version"`
			MessageIdentifier string `xml:"imsx_messageIdentifier"`
		} `xml:"imsx_POXRequestHeaderInfo"`
	} `xml:"imsx_POXHeader"`
	Body struct {
		Request struct {
			Record struct {
				SourcedID string `xml:"sourcedGUID>sourcedId"`
				Score     struct {
					Language   string `xml:"language"`
					TextString string `xml:"textString"`
				} `xml:"result>resultScore"`
			} `xml:"resultRecord"`
		} `xml:"replaceResultRequest"`
	} `xml:"imsx_POXBody"`
}

type outcomeResponse struct {
	XMLName xml.Name `xml:"imsx_POXEnvelopeResponse"`
	Status  struct {
		CodeMajor   string `xml:"imsx_codeMajor"`
		Description string `xml:"imsx_description"`
	} `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo>imsx_statusInfo"`
}

func newReplaceResult(messageID, sourcedID, score string) replaceResultEnvelope {
	var env replaceResultEnvelope
	env.Namespace = outcomeNamespace
	env.Header.Info.Version = "V1.0"
	env.Header.Info.MessageIdentifier = messageID
	env.Body.Request.Record.SourcedID = sourcedID
	env.Body.Request.Record.Score.Language = "en"
	env.Body.Request.Record.Score.TextString = score
	return env
}
