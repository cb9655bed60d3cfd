package mailer

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"accountguard/internal/config"
)

func TestRender(t *testing.T) {
	Convey("渲染邮件模板", t, func() {
		data := map[string]any{
			"username":   "alice000",
			"link":       "https://example.com/verify?token=abc",
			"expires_in": "24h0m0s",
		}

		Convey("验证邮件", func() {
			subject, body, err := Render(TemplateEmailVerification, data)
			So(err, ShouldBeNil)
			So(subject, ShouldEqual, "Confirm your email address")
			So(body, ShouldContainSubstring, "alice000")
			So(body, ShouldContainSubstring, "token=abc")
		})

		Convey("未知模板报错", func() {
			_, _, err := Render("welcome", data)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNew(t *testing.T) {
	Convey("按驱动创建 Notifier", t, func() {
		n, err := New(&config.MailConfig{Driver: "log"})
		So(err, ShouldBeNil)
		So(n.Send(context.Background(), "a@b.co", TemplatePasswordReset, map[string]any{}), ShouldBeNil)

		n, err = New(&config.MailConfig{Driver: "smtp", Host: "localhost", Port: 25, From: "noreply@b.co"})
		So(err, ShouldBeNil)
		So(n, ShouldHaveSameTypeAs, &SMTP{})

		_, err = New(&config.MailConfig{Driver: "fax"})
		So(err, ShouldNotBeNil)
	})
}
