package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

func tileMap(r domain.TileRecord) map[string]interface{} {
	b := r.Geometry.Bound()
	return map[string]interface{}{
		"tile_name": r.TileName,
		"workunit":  r.Workunit,
		"minx":      b.Min.X(),
		"miny":      b.Min.Y(),
		"maxx":      b.Max.X(),
		"maxy":      b.Max.Y(),
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	tileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tile",
		Fields: graphql.Fields{
			"tile_name": &graphql.Field{Type: graphql.String},
			"workunit":  &graphql.Field{Type: graphql.String},
			"minx":      &graphql.Field{Type: graphql.Float},
			"miny":      &graphql.Field{Type: graphql.Float},
			"maxx":      &graphql.Field{Type: graphql.Float},
			"maxy":      &graphql.Field{Type: graphql.Float},
		},
	})

	eptType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EPT",
		Fields: graphql.Fields{
			"workunit":     &graphql.Field{Type: graphql.String},
			"epsg":         &graphql.Field{Type: graphql.Int},
			"ept_json_url": &graphql.Field{Type: graphql.String},
		},
	})

	tileDataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TileData",
		Fields: graphql.Fields{
			"tile_name":         &graphql.Field{Type: graphql.String},
			"workunit":          &graphql.Field{Type: graphql.String},
			"minx":              &graphql.Field{Type: graphql.Float},
			"miny":              &graphql.Field{Type: graphql.Float},
			"maxx":              &graphql.Field{Type: graphql.Float},
			"maxy":              &graphql.Field{Type: graphql.Float},
			"epsg":              &graphql.Field{Type: graphql.Int},
			"ept_filter_as_wkt": &graphql.Field{Type: graphql.String},
			"outputs":           &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"tileIndexEPSG": &graphql.Field{
				Type:        graphql.Int,
				Description: "EPSG code of the tile index",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					crs, err := deps.Index.CRS(p.Context)
					if err != nil {
						return nil, err
					}
					return crs.EPSG, nil
				},
			},
			"tiles": &graphql.Field{
				Type:        graphql.NewList(tileType),
				Description: "Tile index records, optionally for one workunit",
				Args: graphql.FieldConfigArgument{
					"workunit": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					index, err := deps.Index.Load(p.Context, nil)
					if err != nil {
						return nil, err
					}
					recs := index.Records
					if wu, ok := p.Args["workunit"].(string); ok && wu != "" {
						recs = domain.Selection{Tiles: recs}.ByWorkunit(wu).Tiles
					}
					if limit := p.Args["limit"].(int); limit > 0 && limit < len(recs) {
						recs = recs[:limit]
					}
					out := make([]map[string]interface{}, len(recs))
					for i, r := range recs {
						out[i] = tileMap(r)
					}
					return out, nil
				},
			},
			"ept": &graphql.Field{
				Type:        eptType,
				Description: "Resolve the point-cloud source of a workunit",
				Args: graphql.FieldConfigArgument{
					"workunit": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ept, err := deps.EPT.Resolve(p.Context, p.Args["workunit"].(string))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"workunit":     ept.Workunit,
						"epsg":         ept.CRS.EPSG,
						"ept_json_url": ept.EPTJSONURL,
					}, nil
				},
			},
			"tileData": &graphql.Field{
				Type:        graphql.NewList(tileDataType),
				Description: "Planned tile data for a GeoJSON AOI",
				Args: graphql.FieldConfigArgument{
					"aoi": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					aoi, err := vectorfile.ParseAOI([]byte(p.Args["aoi"].(string)))
					if err != nil {
						return nil, err
					}
					plan, err := deps.Runs.Plan(p.Context, usecases.RunRequest{AOI: aoi})
					if err != nil {
						return nil, err
					}
					var out []map[string]interface{}
					for _, wu := range plan.Workunits {
						for i, td := range wu.Tiles {
							m := map[string]interface{}{
								"tile_name":         td.TileName,
								"workunit":          wu.EPT.Workunit,
								"minx":              td.MinX,
								"miny":              td.MinY,
								"maxx":              td.MaxX,
								"maxy":              td.MaxY,
								"epsg":              td.CRS.EPSG,
								"ept_filter_as_wkt": td.EPTFilterWKT,
							}
							if i < len(wu.Pipelines) {
								m["outputs"] = wu.Pipelines[i].Outputs
							}
							out = append(out, m)
						}
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
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

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
