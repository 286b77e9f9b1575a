package resources

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/haasteikko/webclient/internal/schema"
)

func questionKind() *openapi3.Schema {
	return schema.Enum(string(QuestionBoolean), string(QuestionTextInput))
}

func libraryBranch(kind ItemKind, fields ...schema.Field) *openapi3.Schema {
	return schema.Object(append([]schema.Field{
		schema.Required("kind", schema.Literal(string(kind))),
		schema.Required("id", schema.String()),
		schema.Required("title", schema.String()),
		schema.Required("author", schema.String()),
		schema.Required("activatedChallengeIds", schema.ArrayOf(schema.String())),
		schema.Required("favorite", schema.Bool()),
	}, fields...)...)
}

var (
	librarySchemas = schema.NewPair(schema.New("library item", schema.Union("kind",
		libraryBranch(KindBook, schema.Optional("translator", schema.String())),
		libraryBranch(KindGame),
	)), "id")

	questionSchema = schema.Object(
		schema.Required("kind", questionKind()),
		schema.Required("id", schema.String()),
		schema.Required("question", schema.String()),
		schema.Required("number", schema.Integer()),
		schema.Required("questionClusterSize", schema.Integer()),
	)

	challengeSchemas = schema.NewPair(schema.New("challenge", schema.Object(
		schema.Required("id", schema.String()),
		schema.Required("name", schema.String()),
		schema.Required("status", schema.Enum(string(StatusActive), string(StatusInactive))),
		schema.Required("targetMedia", schema.Enum(string(KindBook), string(KindGame))),
		schema.Required("questions", schema.ArrayOf(questionSchema)),
		schema.Required("kind", schema.String()),
	)), "id")

	answerSchema = schema.Object(
		schema.Required("kind", questionKind()),
		schema.Required("id", schema.String()),
		schema.Required("questionId", schema.String()),
		schema.Required("answered", schema.Bool()),
		schema.Required("answer", schema.String()),
		schema.Required("itemId", schema.String()),
	)

	answerSetSchemas = schema.NewPair(schema.New("answer set", schema.Object(
		schema.Required("id", schema.UUID()),
		schema.Required("challengeId", schema.String()),
		schema.Required("itemId", schema.String()),
		schema.Required("answers", schema.ArrayOf(answerSchema)),
	)), "id")

	solutionSchema = schema.Object(
		schema.Required("kind", schema.Enum(string(SinglePartSolution), string(MultiPartSolution))),
		schema.Required("questionId", schema.String()),
		schema.Optional("singleAnswerItemId", schema.Nullable(schema.String())),
		schema.Optional("multipleAnswerItemIds", schema.Nullable(schema.ArrayOf(schema.String()))),
	)

	solutionsSchema = schema.New("solutions", schema.Object(
		schema.Required("solutions", schema.ArrayOf(solutionSchema)),
	))

	preferencesSchema = schema.New("preferences", schema.Object(
		schema.Optional("libraryYearFilter", schema.Nullable(schema.String())),
	))
)
