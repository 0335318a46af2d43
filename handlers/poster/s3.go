package poster

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
)

type s3Cache struct {
	cl     *s3.S3
	bucket string
}

func newS3Cache(cl *s3.S3, bucket string) *s3Cache {
	return &s3Cache{
		cl:     cl,
		bucket: bucket,
	}
}

func (s *s3Cache) Get(ctx context.Context, key string) (*bytes.Buffer, error) {
	r, err := s.cl.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, nil
		}
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(r.Body)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r.Body)
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

func makeAWSMD5(b []byte) *string {
	h := md5.Sum(b)
	m := base64.StdEncoding.EncodeToString(h[:])
	return aws.String(m)
}

func (s *s3Cache) Put(ctx context.Context, key string, b *bytes.Buffer) (err error) {
	data := b.Bytes()
	_, err = s.cl.PutObjectWithContext(ctx,
		&s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentMD5:  makeAWSMD5(data),
			ContentType: aws.String("image/jpeg"),
		})
	return
}
