package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

func latLngMap(p domain.LatLng) map[string]interface{} {
	return map[string]interface{}{"lat": p.Lat, "lng": p.Lng}
}

func bboxMap(b *domain.BoundingBox) map[string]interface{} {
	if b == nil {
		return nil
	}
	return map[string]interface{}{"sw": latLngMap(b.SW), "ne": latLngMap(b.NE)}
}

func polygonMaps(polys []domain.WavePolygon) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(polys))
	for _, p := range polys {
		vertices := make([]map[string]interface{}, len(p.Vertices))
		for i, v := range p.Vertices {
			vertices[i] = latLngMap(v)
		}
		out = append(out, map[string]interface{}{"vertices": vertices})
	}
	return out
}

func areaMap(a domain.EventArea) map[string]interface{} {
	return map[string]interface{}{
		"id":        a.ID,
		"name":      a.Name,
		"style_url": a.StyleURL,
		"bounds":    bboxMap(&a.Bounds),
		"min_zoom":  a.MinZoom,
		"max_zoom":  a.MaxZoom,
	}
}

// buildSchema creates the GraphQL schema. Map state is read on the owning loop.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	latLngType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LatLng",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	bboxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"sw": &graphql.Field{Type: latLngType},
			"ne": &graphql.Field{Type: latLngType},
		},
	})

	cameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Camera",
		Fields: graphql.Fields{
			"center":         &graphql.Field{Type: latLngType},
			"zoom":           &graphql.Field{Type: graphql.Float},
			"visible_bounds": &graphql.Field{Type: bboxType},
			"animating":      &graphql.Field{Type: graphql.Boolean},
			"style_url":      &graphql.Field{Type: graphql.String},
		},
	})

	constraintsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Constraints",
		Fields: graphql.Fields{
			"min_zoom":      &graphql.Field{Type: graphql.Float},
			"max_zoom":      &graphql.Field{Type: graphql.Float},
			"target_bounds": &graphql.Field{Type: bboxType},
		},
	})

	polygonType := graphql.NewObject(graphql.ObjectConfig{
		Name: "WavePolygon",
		Fields: graphql.Fields{
			"vertices": &graphql.Field{Type: graphql.NewList(latLngType)},
		},
	})

	overlaysType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Overlays",
		Fields: graphql.Fields{
			"count":         &graphql.Field{Type: graphql.Int},
			"polygons":      &graphql.Field{Type: graphql.NewList(polygonType)},
			"override_bbox": &graphql.Field{Type: bboxType},
		},
	})

	areaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EventArea",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"style_url": &graphql.Field{Type: graphql.String},
			"bounds":    &graphql.Field{Type: bboxType},
			"min_zoom":  &graphql.Field{Type: graphql.Float},
			"max_zoom":  &graphql.Field{Type: graphql.Float},
		},
	})

	cameraResult := func() map[string]interface{} {
		vb := deps.Map.VisibleBounds()
		return map[string]interface{}{
			"center":         latLngMap(deps.Map.CameraCenter()),
			"zoom":           deps.Map.Zoom(),
			"visible_bounds": bboxMap(&vb),
			"animating":      deps.Map.IsAnimating(),
			"style_url":      deps.Map.StyleURL(),
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"camera": &graphql.Field{
				Type:        cameraType,
				Description: "Committed camera pose",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out map[string]interface{}
					err := deps.Loop.Do(p.Context, func() error {
						out = cameraResult()
						return nil
					})
					return out, err
				},
			},
			"constraints": &graphql.Field{
				Type:        constraintsType,
				Description: "Zoom range and camera target bounds",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var cons domain.CameraConstraints
					err := deps.Loop.Do(p.Context, func() error {
						cons = deps.Map.Constraints()
						return nil
					})
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"min_zoom":      cons.MinZoom,
						"max_zoom":      cons.MaxZoom,
						"target_bounds": bboxMap(cons.TargetBounds),
					}, nil
				},
			},
			"overlays": &graphql.Field{
				Type:        overlaysType,
				Description: "Wave polygons and the override box",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var (
						polys    []domain.WavePolygon
						override *domain.BoundingBox
					)
					err := deps.Loop.Do(p.Context, func() error {
						polys = deps.Map.Polygons()
						if b, ok := deps.Map.OverrideBbox(); ok {
							override = &b
						}
						return nil
					})
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"count":         len(polys),
						"polygons":      polygonMaps(polys),
						"override_bbox": bboxMap(override),
					}, nil
				},
			},
			"areas": &graphql.Field{
				Type:        graphql.NewList(areaType),
				Description: "Stored event areas",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Areas == nil {
						return []interface{}{}, nil
					}
					areas, err := deps.Areas.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(areas))
					for i, a := range areas {
						out[i] = areaMap(a)
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"moveCamera": &graphql.Field{
				Type:        cameraType,
				Description: "Jump the camera; omitting zoom keeps the current one",
				Args: graphql.FieldConfigArgument{
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lng := p.Args["lng"].(float64)
					zoom := domain.KeepZoom
					if z, ok := p.Args["zoom"].(float64); ok {
						zoom = domain.ZoomTo(z)
					}
					var out map[string]interface{}
					err := deps.Loop.Do(p.Context, func() error {
						if err := deps.Map.MoveCamera(lat, lng, zoom); err != nil {
							return err
						}
						out = cameraResult()
						return nil
					})
					return out, err
				},
			},
			"clearOverlays": &graphql.Field{
				Type:        graphql.Int,
				Description: "Remove every wave polygon; returns the remaining count",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					count := 0
					err := deps.Loop.Do(p.Context, func() error {
						if err := deps.Map.ClearWavePolygons(); err != nil {
							return err
						}
						count = deps.Map.OverlayCount()
						return nil
					})
					return count, err
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx, span := traced(c, "graphql")
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})
		span.End()

		return c.JSON(result)
	}
}
