package apihttp

import (
	"github.com/keithlinneman/go-microservice-template/internal/version"
)

// PathOpenAPI serves the machine readable route description.
const PathOpenAPI = "/documentation/json"

type oaObj = map[string]any

func jsonResponse(desc, schemaRef string) oaObj {
	return oaObj{
		"description": desc,
		"content": oaObj{
			"application/json": oaObj{"schema": oaObj{"$ref": "#/components/schemas/" + schemaRef}},
		},
	}
}

func probeOp(tag, summary string, canFail bool) oaObj {
	responses := oaObj{"200": jsonResponse("OK", "StatusOk")}
	if canFail {
		responses["503"] = jsonResponse("Not OK", "StatusOk")
	}
	return oaObj{"get": oaObj{"tags": []string{tag}, "summary": summary, "responses": responses}}
}

// openAPIDocument describes the routes httpserver mounts for every
// service built from this template.
func openAPIDocument(info version.Info) oaObj {
	return oaObj{
		"openapi": "3.0.3",
		"info": oaObj{
			"title":   info.AppName,
			"version": info.Version,
		},
		"paths": oaObj{
			"/": oaObj{"get": oaObj{
				"tags":      []string{"Hello World"},
				"summary":   "Say Hello",
				"responses": oaObj{"200": jsonResponse("OK", "MessageResponse")},
			}},
			"/-/healthz":  probeOp("Liveness", "Process is up", false),
			"/-/ready":    probeOp("Readiness", "Ready to receive traffic", true),
			"/-/check-up": probeOp("Check-up", "Configured dependencies are reachable", true),
		},
		"components": oaObj{"schemas": oaObj{
			"StatusOk": oaObj{
				"type":     "object",
				"required": []string{"statusOk"},
				"properties": oaObj{
					"statusOk": oaObj{"type": "boolean"},
					"reason":   oaObj{"type": "string"},
				},
			},
			"MessageResponse": oaObj{
				"type":       "object",
				"required":   []string{"message"},
				"properties": oaObj{"message": oaObj{"type": "string"}},
			},
		}},
	}
}
