package postgres

import (
	"time"

	"docquery-service/internal/domain"
	"docquery-service/internal/infra/join"
)

// DocumentModel is the GORM model for the documents table.
// Every collection shares the table; the body lives in Data.
type DocumentModel struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Collection string         `gorm:"type:varchar(100);not null;index"`
	Data       map[string]any `gorm:"type:jsonb;serializer:json;not null"`

	// Insertion order, used as the final sort key.
	Seq int64 `gorm:"->"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for DocumentModel.
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain returns the stored document body.
func (m *DocumentModel) ToDomain() domain.Document {
	doc := domain.Document(m.Data)
	if doc == nil {
		doc = domain.Document{}
	}
	doc[domain.IDField] = m.ID
	return doc
}

// FromDomain creates a DocumentModel for doc in collection. The id is taken
// from the document, or generated and written back into it.
func FromDomain(collection string, doc domain.Document) *DocumentModel {
	id, ok := join.DocumentID(doc)
	if !ok {
		id = domain.NewReferenceID()
	}
	doc[domain.IDField] = id.String()

	return &DocumentModel{
		ID:         id.String(),
		Collection: collection,
		Data:       doc,
	}
}

// FromDomainSlice converts documents of one collection to DocumentModels.
func FromDomainSlice(collection string, docs []domain.Document) []*DocumentModel {
	models := make([]*DocumentModel, len(docs))
	for i, d := range docs {
		models[i] = FromDomain(collection, d)
	}

	return models
}
